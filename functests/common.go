/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

// Package functests contains named end-to-end scenarios runnable from the
// CLI against an in-process simulated mesh.
package functests

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

type testCase struct {
	name   string
	action func() error
}

var testCases = []testCase{
	{
		name:   "single node echo",
		action: caseSingleNodeEcho,
	},
	{
		name:   "delegation to the only capable node",
		action: caseDelegation,
	},
	{
		name:   "capability filter via reject offset",
		action: caseCapabilityFilter,
	},
	{
		name:   "load preference under busyness bias",
		action: caseLoadPreference,
	},
	{
		name:   "caller timeout",
		action: caseCallerTimeout,
	},
	{
		name:   "execution error envelope",
		action: caseExecutionError,
	},
	{
		name:   "membership transitivity",
		action: caseMembershipTransitivity,
	},
}

func List() {
	for i, c := range testCases {
		fmt.Printf("%2d: %v\n", i+1, c.name)
	}
}

func Count() {
	fmt.Printf("%v\n", len(testCases))
}

func Run(n int) error {
	if n <= 0 || n > len(testCases) {
		return errors.New("Please provide a valid test case id.")
	}
	c := testCases[n-1]
	fmt.Printf("--------------------\n")
	fmt.Printf("running test %2d: %v\n", n, c.name)
	fmt.Printf("--------------------\n")
	t := time.Now()
	err := c.action()
	fmt.Printf("\n--------------------\n")
	if err == nil {
		color.Green("SUCCESS")
	} else {
		color.Red("FAIL: %v", err)
	}
	fmt.Printf("Time used: %.2fs\n", time.Since(t).Seconds())
	fmt.Printf("--------------------\n")
	return err
}

// RunAll runs the scenarios in order and stops at the first failure, which
// it returns; the scenarios after it are not run.
func RunAll() error {
	for i := range testCases {
		if err := Run(i + 1); err != nil {
			return err
		}
	}
	return nil
}
