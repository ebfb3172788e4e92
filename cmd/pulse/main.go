// Package main implements the Pulse entry point.
package main

func main() {
	Execute()
}
