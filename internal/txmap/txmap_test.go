/*

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package txmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartCommitKeepsInserts(t *testing.T) {
	m := map[string]int{"a": 1}
	tx, err := Start(m, map[string]int{"b": 2, "c": 3})
	require.Nil(t, err)
	defer tx.Rollback()

	require.Equal(t, 3, len(m))
	tx.Commit()
	require.Equal(t, 3, len(m))
}

func TestRollbackRestoresPriorState(t *testing.T) {
	m := map[string]int{"a": 1}
	snapshot := map[string]int{"a": 1}

	tx, err := Start(m, map[string]int{"b": 2, "c": 3})
	require.Nil(t, err)
	require.Equal(t, 3, len(m))

	tx.Rollback()
	require.Equal(t, snapshot, m)
}

func TestStartRejectsCollidingKey(t *testing.T) {
	m := map[string]int{"a": 1}
	snapshot := map[string]int{"a": 1}

	tx, err := Start(m, map[string]int{"a": 99, "z": 2})
	require.Nil(t, tx)
	require.NotNil(t, err)
	require.Equal(t, "a", err.Key)
	// Start must not touch the map at all on collision.
	require.Equal(t, snapshot, m)
}

func TestRollbackAfterCommitIsNoop(t *testing.T) {
	m := map[string]int{}
	tx, err := Start(m, map[string]int{"x": 1})
	require.Nil(t, err)
	tx.Commit()
	tx.Rollback()
	require.Equal(t, map[string]int{"x": 1}, m)
}

func TestRollbackOnNilHandleIsSafe(t *testing.T) {
	var tx *Tx[string, int]
	require.NotPanics(t, func() { tx.Rollback() })
	require.NotPanics(t, func() { tx.Commit() })
}

func TestGroupCommitsOrRollsBackTogether(t *testing.T) {
	a := map[string]int{}
	b := map[string]bool{}

	txA, errA := Start(a, map[string]int{"k": 1})
	require.Nil(t, errA)
	txB, errB := Start(b, map[string]bool{"k": true})
	require.Nil(t, errB)

	g := NewGroup(txA, txB)
	g.Rollback()

	require.Empty(t, a)
	require.Empty(t, b)
}
