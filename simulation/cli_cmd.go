/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

package simulation

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/please-mesh/please/rpccore"
	"github.com/please-mesh/please/utils"
)

const (
	cmdID       = "id"
	cmdNodeInfo = "nodeinfo"
	cmdCall     = "call"
	cmdBusyness = "busyness"
	cmdStopAll  = "stopall"
	cmdWait     = "wait"
	cmdHelp     = "help"
)

var usageMp = map[string]string{
	cmdID:       "",
	cmdNodeInfo: "<node_id_1> <node_id_2> ...",
	cmdCall:     "<origin_node> <module> <function> [args ...]",
	cmdBusyness: "<node_id> <delta>",
	cmdStopAll:  "",
	cmdWait:     "<seconds>",
	cmdHelp:     "",
}

var scanner *bufio.Scanner

func init() {
	scanner = bufio.NewScanner(os.Stdin)
}

// StartReadingCMD reads cmd from STDIN until EOF
func (c *Cluster) StartReadingCMD() {
	invalidCommandError := errors.New("Invalid command")
	var err error

	for scanner.Scan() {
		cmd := strings.Fields(scanner.Text())

		err = nil
		l := len(cmd)

		if l == 0 {
			err = errors.New("Command cannot be empty")
		}

		if err == nil {
			switch cmd[0] {
			case cmdID, cmdStopAll, cmdHelp:
				if l != 1 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}

				switch cmd[0] {
				case cmdID:
					c.printIDs()
				case cmdStopAll:
					c.StopAll()
				case cmdHelp:
					utils.PrintUsage(usageMp)
				}
			case cmdNodeInfo:
				if l < 2 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}

				nodes, e := c.validateNodeIds(cmd, 1, len(cmd))
				if e != nil {
					err = e
					break
				}

				for _, node := range nodes {
					c.printNodeInfo(node)
				}
			case cmdBusyness:
				if l != 3 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}
				nodes, e := c.validateNodeIds(cmd, 1, 2)
				if e != nil {
					err = e
					break
				}
				delta, e := strconv.Atoi(cmd[2])
				if e != nil {
					err = e
					break
				}
				if delta >= 0 {
					c.Node(nodes[0]).BaseBusynessIncrease(delta)
				} else {
					c.Node(nodes[0]).BaseBusynessDecrease(-delta)
				}
			case cmdWait:
				if l != 2 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}
				sec, e := strconv.Atoi(cmd[1])
				if e != nil {
					err = e
					break
				}
				c.Wait(sec)
			case cmdCall:
				if l < 4 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}
				nodes, e := c.validateNodeIds(cmd, 1, 2)
				if e != nil {
					err = e
					break
				}
				args := make([]interface{}, 0, l-4)
				for _, arg := range cmd[4:] {
					args = append(args, arg)
				}
				res, e := c.Node(nodes[0]).MakeItSo(cmd[2], cmd[3], args)
				if e != nil {
					err = e
					break
				}
				fmt.Printf("%v (executed on %v)\n", res.Value, res.Executor)
			default:
				err = invalidCommandError
			}
		}

		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed reading stdin: ", err)
	}
}

func combineErrorUsage(e error, cmd string) error {
	return errors.New(e.Error() + "\nUsage: " + cmd + " " + usageMp[cmd])
}

// validateNodeIds checks whether the node ids are in the current cluster
func (c *Cluster) validateNodeIds(nodes []string, l, r int) ([]rpccore.NodeID, error) {
	rst := make([]rpccore.NodeID, 0)
	for i := l; i < r && i < len(nodes); i++ {
		nodeID := rpccore.NodeID(nodes[i])
		if _, ok := c.nodes[nodeID]; ok {
			rst = append(rst, nodeID)
		} else {
			return nil, errors.New("Unable to find node in the current list")
		}
	}
	return rst, nil
}

func (c *Cluster) printIDs() {
	fmt.Print("[")
	for i, id := range c.names {
		if i == 0 {
			fmt.Printf("%v", id)
		} else {
			fmt.Printf(" %v", id)
		}
	}
	fmt.Println("]")
}

func (c *Cluster) printNodeInfo(node rpccore.NodeID) {
	fmt.Printf("Node info of [%v]\n", node)
	for k, v := range c.Node(node).Info() {
		fmt.Printf("  %v: %v\n", k, v)
	}
}
