// Package menu defines the domain types and collaborator interfaces shared by
// the fetch, normalize, tag, and reconcile stages of the menu sync.
package menu
