package hdf5

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walkFixture(t *testing.T) *File {
	return roundTrip(t, func(root *Group) {
		stp, err := root.CreateGroup("stp")
		require.NoError(t, err)
		det, err := stp.CreateGroup("det001")
		require.NoError(t, err)
		_, err = det.CreateDataset("edep", []float64{1, 2, 3})
		require.NoError(t, err)
		_, err = det.CreateDataset("evtid", []int32{0, 0, 1})
		require.NoError(t, err)
		require.NoError(t, stp.CreateSoftLink("det00001", "/stp/det001"))
		_, err = root.CreateGroup("header")
		require.NoError(t, err)
	})
}

func TestWalk(t *testing.T) {
	f := walkFixture(t)

	var groups, datasets, links []string
	err := Walk(f.Root(), func(path string, obj any, err error) error {
		require.NoError(t, err)
		switch o := obj.(type) {
		case *Group:
			groups = append(groups, path)
		case *Dataset:
			datasets = append(datasets, path)
			assert.Equal(t, []uint64{3}, o.Shape())
		case Link:
			links = append(links, path+" -> "+o.Target)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/", "/stp", "/stp/det001", "/header"}, groups)
	assert.Equal(t, []string{"/stp/det001/edep", "/stp/det001/evtid"}, datasets)
	assert.Equal(t, []string{"/stp/det00001 -> /stp/det001"}, links)
}

func TestWalkSkipGroup(t *testing.T) {
	f := walkFixture(t)

	var visited []string
	err := Walk(f.Root(), func(path string, obj any, err error) error {
		visited = append(visited, path)
		if path == "/stp" {
			return SkipGroup
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/stp", "/header"}, visited)

	visited = nil
	err = Walk(f.Root(), func(path string, obj any, err error) error {
		visited = append(visited, path)
		return SkipGroup
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, visited)
}

func TestWalkStop(t *testing.T) {
	f := walkFixture(t)
	stop := errors.New("stop")

	var visited int
	err := Walk(f.Root(), func(path string, obj any, err error) error {
		visited++
		if _, ok := obj.(*Dataset); ok {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 4, visited)
}

func TestWalkSubgroup(t *testing.T) {
	f := walkFixture(t)
	g, err := f.OpenGroup("/stp/det001")
	require.NoError(t, err)

	var paths []string
	require.NoError(t, Walk(g, func(path string, obj any, err error) error {
		paths = append(paths, path)
		return nil
	}))
	assert.Equal(t, []string{"/stp/det001", "/stp/det001/edep", "/stp/det001/evtid"}, paths)
}
