// Command menusync syncs campus dining menus into the dish database.
package main

import "github.com/JakeFAU/dining-menu-sync/cmd"

func main() {
	cmd.Execute()
}
