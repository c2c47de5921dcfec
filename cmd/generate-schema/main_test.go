package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	data, err := generate()
	require.NoError(t, err)

	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, "DittoDrop Configuration", schema.Title)
	for _, section := range []string{"logging", "client", "daemon", "storage", "journal", "metrics"} {
		assert.Contains(t, schema.Properties, section)
	}
}
