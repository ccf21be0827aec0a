// Package database builds pgx connection pools for the presence store.
package database
