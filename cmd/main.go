package main

import (
	"github.com/soundprediction/graphrag/cmd/graphrag"
)

func main() {
	graphrag.Execute()
}
