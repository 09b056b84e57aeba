/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixtureBase(t *testing.T) string {
	t.Helper()
	base := t.TempDir()

	alpha := filepath.Join(base, "alpha")
	require.NoError(t, os.Mkdir(alpha, 0o755))
	writeFile(t, filepath.Join(alpha, "wards.csv"), "name,x,y\nW1,0,0\nW2,10,0\n")
	writeFile(t, filepath.Join(alpha, "2025-08-18_parsing.csv"),
		"time_index,sward_name,mac_address,type,rssi\n100,W1,aa:01,1,-65\n101,W2,aa:01,1,-70\n")
	writeFile(t, filepath.Join(alpha, "2025-08-19_parsing.csv"),
		"time_index,sward_name,mac_address,type,rssi\n200,W1,bb:02,10,-80\n")
	writeFile(t, filepath.Join(alpha, "notes.txt"), "not a detection file")
	writeFile(t, filepath.Join(alpha, "backup_parsing.csv"), "time_index\n1\n")

	beta := filepath.Join(base, "beta")
	require.NoError(t, os.Mkdir(beta, 0o755))
	writeFile(t, filepath.Join(beta, "2025-08-19_parsing.csv"),
		"time_index,sward_name,mac_address,type,rssi\n300,W1,cc:03,1,-60\n")

	require.NoError(t, os.Mkdir(filepath.Join(base, ".hidden"), 0o755))
	return base
}

func TestGetProfile(t *testing.T) {
	base := fixtureBase(t)
	writeFile(t, filepath.Join(base, "alpha", "profile.json"),
		`{"type":"Residential","description":"Local pharmacy",`+
			`"business_hours":{"weekday":{"open":8.5,"close":19.25},"sunday":{"closed":true}}}`)

	loader, err := NewLoader(base)
	require.NoError(t, err)

	profile, err := loader.GetProfile("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", profile.Name)
	assert.Equal(t, "Residential", profile.Type)
	assert.InDelta(t, 8.5, profile.BusinessHours["weekday"].Open, 1e-9)
	assert.True(t, profile.BusinessHours["sunday"].Closed)

	// no profile file falls back to a named default
	profile, err = loader.GetProfile("beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", profile.Name)
	assert.Equal(t, "Unknown", profile.Type)

	_, err = loader.GetProfile("ghost")
	assert.Equal(t, ErrUnknownStore, errors.Cause(err))
}

func TestNewLoaderDiscovery(t *testing.T) {
	loader, err := NewLoader(fixtureBase(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, loader.Stores())
}

func TestNewLoaderEmptyBase(t *testing.T) {
	_, err := NewLoader(t.TempDir())
	assert.Error(t, err)

	_, err = NewLoader(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestGetInfo(t *testing.T) {
	loader, err := NewLoader(fixtureBase(t))
	require.NoError(t, err)

	info, err := loader.GetInfo("alpha")
	require.NoError(t, err)
	assert.True(t, info.HasWardPlan)
	// foreign files and non-date parsing names are ignored
	assert.Equal(t, []string{"2025-08-18", "2025-08-19"}, info.Dates)

	info, err = loader.GetInfo("beta")
	require.NoError(t, err)
	assert.False(t, info.HasWardPlan)

	_, err = loader.GetInfo("ghost")
	assert.Equal(t, ErrUnknownStore, errors.Cause(err))
}

func TestWardPlan(t *testing.T) {
	loader, err := NewLoader(fixtureBase(t))
	require.NoError(t, err)

	plan, err := loader.WardPlan("alpha")
	require.NoError(t, err)
	assert.Len(t, plan, 2)
	assert.Equal(t, 10.0, plan["W2"].X)

	_, err = loader.WardPlan("beta")
	assert.Error(t, err)
}

func TestDetections(t *testing.T) {
	loader, err := NewLoader(fixtureBase(t))
	require.NoError(t, err)

	detections, err := loader.Detections("alpha", "2025-08-18")
	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, "aa:01", detections[0].Identifier)

	_, err = loader.Detections("alpha", "2025-01-01")
	assert.Error(t, err)
}

func TestDetectionsInRange(t *testing.T) {
	loader, err := NewLoader(fixtureBase(t))
	require.NoError(t, err)

	detections, err := loader.DetectionsInRange("alpha", "2025-08-18", 101, 200)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, 101, detections[0].TimeIndex)
}

func TestCommonDates(t *testing.T) {
	loader, err := NewLoader(fixtureBase(t))
	require.NoError(t, err)

	common, err := loader.CommonDates(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-19"}, common)

	common, err = loader.CommonDates([]string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-18", "2025-08-19"}, common)
}
