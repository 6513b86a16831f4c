// modelcheck loads the model registry from an artifact directory and prints a
// summary of every artifact, failing loudly on any missing or malformed file.
// Run it after copying new artifacts into place, before restarting the
// service.
package main

import (
	"flag"
	"fmt"
	"os"

	"roadwatch/model"
)

func main() {
	dir := flag.String("dir", "./artifacts", "artifact directory to check")
	flag.Parse()

	registry, err := model.Load(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "artifact check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("artifact directory %s OK\n", *dir)
	fmt.Printf("feature count: %d\n", registry.FeatureCount())
	fmt.Printf("classes: %v\n", model.ClassLabels)
	for _, h := range registry.Models() {
		fmt.Printf("  %-20s shape=%-22s probabilities=%v\n", h.Name, h.Shape, h.HasProba)
	}
}
