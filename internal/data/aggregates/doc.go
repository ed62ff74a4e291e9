// Package aggregates holds the write-side plumbing shared by repos and services:
// transaction boundaries, optimistic version guards and error classification.
package aggregates
