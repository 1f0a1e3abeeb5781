/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

package main

import (
	"log"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/please-mesh/please/functests"
	"github.com/please-mesh/please/simulation"
)

func main() {
	// run a node from a config file
	cmdNode := &cli.Command{
		Name:  "node",
		Usage: "commands for running a mesh node",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "c", Usage: "node config file path", Required: true},
		},
		Action: func(c *cli.Context) error {
			return StartNodeFromFile(c.Path("c"))
		},
	}
	// run simulation
	cmdSimulation := &cli.Command{
		Name:  "simulation",
		Usage: "commands for running simulation",
		Subcommands: []*cli.Command{
			{
				Name:  "local",
				Usage: "start a local simulation",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "n", Usage: "number of nodes", Required: true},
				},
				Action: func(c *cli.Context) error {
					if c.Int("n") == 0 {
						return errors.New("please provide -n")
					}
					return localSimulation(c.Int("n"))
				},
			},
		},
	}
	// run end-to-end scenarios
	cmdScenario := &cli.Command{
		Name:  "scenario",
		Usage: "commands for running end-to-end scenarios",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list all available scenarios",
				Action: func(c *cli.Context) error {
					functests.List()
					return nil
				},
			},
			{
				Name:  "count",
				Usage: "count all available scenarios",
				Action: func(c *cli.Context) error {
					functests.Count()
					return nil
				},
			},
			{
				Name:  "run",
				Usage: "run a specific scenario",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "n", Usage: "scenario id", Required: true},
				},
				Action: func(c *cli.Context) error {
					return functests.Run(c.Int("n"))
				},
			},
			{
				Name:  "all",
				Usage: "run every scenario, stopping at the first failure",
				Action: func(c *cli.Context) error {
					return functests.RunAll()
				},
			},
		},
	}

	figure.NewFigure("please", "", true).Print()
	app := &cli.App{
		Commands: []*cli.Command{
			cmdNode,
			cmdSimulation,
			cmdScenario,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func localSimulation(n int) error {
	c := simulation.RunLocally(n)
	defer c.StopAll()

	c.StartReadingCMD()
	return nil
}
