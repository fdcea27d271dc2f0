// Package main is the entry point for quotad, the usage-quota
// accounting service.
package main

func main() {
	Execute()
}
