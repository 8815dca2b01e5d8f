package main

import "github.com/CraigKelly/grais/cmd"

// TODO: checkpoint the sampler State to disk so a run can be frozen and continued

func main() {
	cmd.Execute()
}
