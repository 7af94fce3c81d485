package sport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestState_ZeroValue(t *testing.T) {
	var st State
	require.Zero(t, st.TargetLatitude())
	require.Zero(t, st.TargetLongitude())
	require.Zero(t, st.TargetAltitude())
}

func TestState_CoordinateWithoutHemisphereIsZero(t *testing.T) {
	st := State{LatBP: 52, LatAP: 520817}
	require.Zero(t, st.TargetLatitude())
	st.LatSign = -1
	require.Equal(t, int32(-52520817), st.TargetLatitude())
}

func TestState_Extremes(t *testing.T) {
	st := State{LonSign: -1, LonBP: 179, LonAP: 999999}
	require.Equal(t, int32(-179999999), st.TargetLongitude())
}

func TestState_OutOfRangeSaturates(t *testing.T) {
	st := State{LatSign: 1, LatBP: 5231, LatAP: 1234, LonSign: -1, LonBP: 5231}
	require.Equal(t, int32(math.MaxInt32), st.TargetLatitude())
	require.Equal(t, int32(math.MinInt32), st.TargetLongitude())

	st = State{LatSign: 1, LatAP: math.MaxUint32}
	require.Equal(t, int32(math.MaxInt32), st.TargetLatitude())

	// Largest in-range value is untouched.
	st = State{LatSign: 1, LatBP: 2147, LatAP: 483647}
	require.Equal(t, int32(math.MaxInt32), st.TargetLatitude())
	st.LatAP = 483646
	require.Equal(t, int32(math.MaxInt32-1), st.TargetLatitude())
}
