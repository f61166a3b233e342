package program

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/deepnoodle-ai/robot/vm"
	"github.com/stretchr/testify/require"
)

func TestExampleRobots(t *testing.T) {
	tests := []struct {
		file     string
		expected string
	}{
		{"fibonacci.yaml", "[0,1,1,2,3,5,8,13,21,34]"},
		{"hello.yaml", "[0,1,1,2,3]"},
		{"errors.yaml", `[25,"division by zero",20]`},
	}
	loader := NewLoader(WithBaseDir(filepath.Join("..", "examples", "robots")))
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			robot, err := loader.Load(tt.file)
			require.NoError(t, err)
			result, err := vm.Run(context.Background(), robot, vm.NewNullDebugger())
			require.NoError(t, err)
			require.Equal(t, tt.expected, result.String())
		})
	}
}

func TestExampleLibraryChecks(t *testing.T) {
	loader := NewLoader(WithBaseDir(filepath.Join("..", "examples", "robots")))
	require.NoError(t, loader.Check("greetings.yaml"))
}
