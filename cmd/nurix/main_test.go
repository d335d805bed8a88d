package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBoundingBox(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    models.BoundingBox
		wantErr bool
	}{
		{in: "100,300,100,200", want: models.BoundingBox{MinX: 100, MaxX: 300, MinY: 100, MaxY: 200}},
		{in: " 1.5, 2.5 ,0,1", want: models.BoundingBox{MinX: 1.5, MaxX: 2.5, MinY: 0, MaxY: 1}},
		{in: "1,2,3", wantErr: true},
		{in: "a,2,3,4", wantErr: true},
		{in: "5,1,0,1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := parseBoundingBox(tt.in)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGradeCommand(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	oracleServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/evaluate", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"correctness_score": 88, "errors_found": [], "feedback": "Correct"}`))
	}))
	t.Cleanup(oracleServer.Close)

	var out bytes.Buffer

	command := newCommand()
	command.Writer = &out

	err := command.Run(context.Background(), []string{
		"nurix",
		"--database-url", "file://" + t.TempDir(),
		"--cache-url", "memory://",
		"--oracle-url", oracleServer.URL,
		"--log-level", "error",
		"grade",
		"--socket-id", "S1",
		"--question-url", "https://cdn.example.com/q/1.png",
		"--solution-url", "https://cdn.example.com/s/1.png",
		"--bounding-box", "100,300,100,200",
	})
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))

	assert.Equal(t, "S1", result["socket_id"])
	assert.EqualValues(t, 1, result["total_attempts"])
	assert.Equal(t, true, result["solution_complete"])
	assert.Equal(t, false, result["cache_hit"])
	assert.Equal(t, int32(1), calls.Load())
}
