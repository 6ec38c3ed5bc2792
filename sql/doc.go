// Package sql lexes and parses the statements understood by the engine:
// CREATE DATABASE, USE, CREATE TABLE, INSERT, SELECT, DELETE and DROP.
//
// Errors carry the line and column of the offending token as *SyntaxError.
package sql
