// Package main is the entry point for kvorm, a schema-validating document
// API served over pluggable key-value store backends.
package main

func main() {
	Execute()
}
