package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineError_Family(t *testing.T) {
	assert.Equal(t, FamilyInput, NewInvalidJSON().Family())
	assert.Equal(t, FamilyInput, NewInvalidAttribute("limit", "must be positive").Family())
	assert.Equal(t, FamilyLibrary, NewLibraryRead("a.js", "No such file or directory").Family())
	assert.Equal(t, FamilyInterpreter, NewInvocation("Error: x").Family())
}

func TestIsLibraryError(t *testing.T) {
	wrapped := fmt.Errorf("preload a.js: %w", NewLibraryExecution("a.js", "Error: boom"))
	assert.True(t, IsLibraryError(wrapped))
	assert.False(t, IsLibraryError(NewCompilation(nil)))
	assert.False(t, IsLibraryError(errors.New("disk full")))
}
