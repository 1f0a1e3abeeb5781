package utils

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Random an integer within the range
func Random(a, b int) int {
	return rand.Intn(b-a+1) + a
}

func RandomTime(a, b time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(b-a+1)) + int64(a))
}

// PrintUsage prints the usage of all the commands given
func PrintUsage(usageMp map[string]string) {
	fmt.Println("Usage: ")
	for cmd, usage := range usageMp {
		fmt.Printf("  %v %v\n", cmd, usage)
	}
}

// ReadFromJSON reads the JSON file at the given path into v.
func ReadFromJSON(v interface{}, filepath string) error {
	raw, err := ioutil.ReadFile(filepath)
	if err != nil {
		return errors.WithStack(err)
	}
	err = json.Unmarshal(raw, v)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}
