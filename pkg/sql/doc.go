// Package sql contains lightweight SQL text utilities: table identifier
// extraction for failure diagnosis and a libinjection-based parameter guard.
// Neither is a parser; both assume the statement came out of the query
// generation pipeline in roughly well-formed shape.
package sql
