// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sample

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/9rum/meanalysis/internal/chain"
	"github.com/9rum/meanalysis/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fields returns a complete configuration for a sample.
func fields() map[string]interface{} {
	return map[string]interface{}{
		KeyNickName:          "tthbb_13TeV",
		KeyFileNamesS1:       []interface{}{"s1_a.json", "s1_b.json"},
		KeyFileNamesS2:       []interface{}{"s2_a.json"},
		KeyFractionToProcess: 1.,
		KeyType:              "ME_13TEV",
		KeyProcess:           "TTHBB",
		KeySkip:              false,
		KeyStep1Enabled:      true,
		KeyStep2Enabled:      true,
	}
}

func newSample(t *testing.T, fields map[string]interface{}, opts ...Option) *Sample {
	t.Helper()
	rec, err := config.NewRecord(fields)
	require.NoError(t, err)
	s, err := New(rec, opts...)
	require.NoError(t, err)
	return s
}

// reports records the fractions reported for each sample.
type reports map[string][]float64

func (r reports) ReportFraction(nickName string, fraction float64) {
	r[nickName] = append(r[nickName], fraction)
}

func TestNew(t *testing.T) {
	s := newSample(t, fields())

	assert.Equal(t, "tthbb_13TeV", s.NickName())
	assert.Equal(t, []string{"s1_a.json", "s1_b.json"}, s.FileNames(Stage1))
	assert.Equal(t, []string{"s2_a.json"}, s.FileNames(Stage2))
	assert.Nil(t, s.FileNames(Stage(3)))
	assert.Equal(t, 1., s.FractionToProcess())
	assert.Equal(t, ME_13TEV, s.Type())
	assert.Equal(t, TTHBB, s.Process())
	assert.False(t, s.Skip())
	assert.True(t, s.Enabled(Stage1))
	assert.True(t, s.Enabled(Stage2))
	assert.Zero(t, s.TotalEvents())

	// the file lists are fixed at construction
	files := s.FileNames(Stage1)
	files[0] = "other.json"
	assert.Equal(t, "s1_a.json", s.FileNames(Stage1)[0])
}

func TestNewEnumOrdinals(t *testing.T) {
	f := fields()
	f[KeyType] = 0
	f[KeyProcess] = 1
	s := newSample(t, f)
	assert.Equal(t, NOME_8TEV, s.Type())
	assert.Equal(t, TTJETS, s.Process())
	assert.Equal(t, "NOME_8TEV", s.Type().String())
	assert.Equal(t, "TTJETS", s.Process().String())
	assert.Equal(t, "Type(7)", Type(7).String())
	assert.Equal(t, "Process(-1)", Process(-1).String())
}

func TestNewConfigurationError(t *testing.T) {
	for key := range fields() {
		f := fields()
		delete(f, key)
		rec, err := config.NewRecord(f)
		require.NoError(t, err)

		s, err := New(rec)
		assert.Nil(t, s, key)
		var cerr *config.Error
		require.True(t, errors.As(err, &cerr), key)
		assert.Equal(t, key, cerr.Key)
	}

	for key, value := range map[string]interface{}{
		KeyNickName:          []interface{}{"a"},
		KeyFileNamesS2:       "s2_a.json",
		KeyFractionToProcess: "all",
		KeyType:              "ME_14TEV",
		KeyProcess:           2,
		KeySkip:              "no",
		KeyStep2Enabled:      nil,
	} {
		f := fields()
		f[key] = value
		rec, err := config.NewRecord(f)
		require.NoError(t, err)

		s, err := New(rec)
		assert.Nil(t, s, key)
		assert.True(t, config.IsConfigurationError(err), key)
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		total    int64
		fraction float64
		skip     bool
		first    int64
		last     int64
	}{
		{1000, 1., false, 0, 1000},
		{1000, .25, false, 0, 250},
		{1000, .999, false, 0, 999},
		{1000, .25, true, 0, -1},
		{0, 1., false, 0, 0},
		{1000, 2., false, 0, 1000},
		{-10, 1., false, 0, -10},
		{0, .5, false, 0, 0},
	}

	for _, tt := range tests {
		f := fields()
		f[KeyFractionToProcess] = tt.fraction
		f[KeySkip] = tt.skip
		s := newSample(t, f, WithReporter(reports{}))
		s.SetTotalEvents(tt.total)

		first, last := s.Range()
		assert.Equal(t, tt.first, first, "%+v", tt)
		assert.Equal(t, tt.last, last, "%+v", tt)
	}
}

func TestRangeProperties(t *testing.T) {
	for i := 0; i < 1000; i++ {
		total := rand.Int63n(1 << 40)
		fraction := rand.Float64() * 2
		skip := rand.Intn(2) == 0

		last, partial := LastEvent(skip, fraction, total)
		switch {
		case skip:
			assert.Equal(t, int64(-1), last)
			assert.False(t, partial)
		case fraction < 1.:
			assert.Equal(t, int64(math.Floor(fraction*float64(total))), last)
			assert.True(t, partial)
		default:
			assert.Equal(t, total, last)
			assert.False(t, partial)
		}
	}
}

func TestLastEventReports(t *testing.T) {
	r := reports{}

	f := fields()
	f[KeyFractionToProcess] = .25
	s := newSample(t, f, WithReporter(r))
	s.SetTotalEvents(1000)

	assert.Equal(t, int64(0), s.FirstEvent())
	assert.Empty(t, r)
	assert.Equal(t, int64(250), s.LastEvent())
	assert.Equal(t, []float64{.25}, r["tthbb_13TeV"])

	f[KeySkip] = true
	s = newSample(t, f, WithReporter(r))
	assert.Equal(t, int64(-1), s.LastEvent())
	assert.Len(t, r["tthbb_13TeV"], 1)

	s = newSample(t, fields(), WithReporter(r))
	assert.Equal(t, int64(0), s.LastEvent())
	assert.Len(t, r["tthbb_13TeV"], 1)

	assert.Equal(t, "Processing a fraction of sample tthbb_13TeV: 0.25", FractionMessage("tthbb_13TeV", .25))
}

func TestHandles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
		return path
	}

	var opened []string
	opener := chain.OpenerFunc(func(ctx context.Context, path string) (io.ReadCloser, error) {
		opened = append(opened, filepath.Base(path))
		return chain.FileOpener{}.Open(ctx, path)
	})

	f := fields()
	f[KeyFileNamesS1] = []interface{}{write("s1_a.json", "{}\n{}\n"), write("s1_b.json", "{}\n")}
	f[KeyFileNamesS2] = []interface{}{write("s2_a.json", "{\"event\": 7}\n")}
	s := newSample(t, f, WithOpener(opener))

	require.NoError(t, s.Populate(context.Background()))
	assert.Equal(t, int64(3), s.TotalEvents())
	assert.Equal(t, []string{"s1_a.json", "s1_b.json"}, opened)

	c, err := s.Chain(Stage2)
	require.NoError(t, err)
	again, err := s.Chain(Stage2)
	require.NoError(t, err)
	assert.Same(t, c, again)

	tree, err := s.Tree()
	require.NoError(t, err)
	event, err := tree.Next()
	require.NoError(t, err)
	assert.Equal(t, 7., event.GetFields()["event"].GetNumberValue())

	_, err = s.Chain(Stage(0))
	assert.ErrorIs(t, err, ErrInvalidStage)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, chain.ErrClosed)
}

func TestHandlesOutliveCallerContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s2.json")
	require.NoError(t, os.WriteFile(path, []byte("{}\n{}\n"), 0o600))

	f := fields()
	f[KeyStep1Enabled] = false
	f[KeyFileNamesS2] = []interface{}{path}
	s := newSample(t, f)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Zero(t, s.TotalEvents())
	cancel()

	tree, err := s.Tree()
	require.NoError(t, err)
	n, err = tree.Entries()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ctx, cancel = context.WithCancel(context.Background())
	bound := newSample(t, f, WithContext(ctx))
	defer bound.Close()
	cancel()
	tree, err = bound.Tree()
	require.NoError(t, err)
	_, err = tree.Next()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandlesDisabledStage(t *testing.T) {
	f := fields()
	f[KeyStep1Enabled] = false
	f[KeyStep2Enabled] = false
	s := newSample(t, f)

	_, err := s.Chain(Stage1)
	assert.ErrorIs(t, err, ErrStageDisabled)
	_, err = s.Tree()
	assert.ErrorIs(t, err, ErrStageDisabled)
	assert.ErrorIs(t, s.Populate(context.Background()), ErrStageDisabled)
	assert.NoError(t, s.Close())
}
