package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowedActivitiesForPublicHealthOnly(t *testing.T) {
	allowed := AllowedActivitiesFor(true, false)
	require.Equal(t, []string{ActivityPublicHealth, ActivityGrainPests}, allowed)
	require.Equal(t, []string{ActivityTermite}, RestrictedActivities(allowed))
}

func TestAllowedActivitiesForBothCerts(t *testing.T) {
	allowed := AllowedActivitiesFor(true, true)
	require.Equal(t, []string{ActivityPublicHealth, ActivityTermite, ActivityGrainPests}, allowed)
	require.Empty(t, RestrictedActivities(allowed))
}

func TestTermiteOnlyPrependsPublicHealth(t *testing.T) {
	allowed := AllowedActivitiesFor(false, true)
	require.Equal(t, []string{ActivityPublicHealth, ActivityTermite}, allowed)
	require.Equal(t, ActivityPublicHealth, allowed[0])
}

func TestNormalizeActivitiesOrders(t *testing.T) {
	allowed := NormalizeActivities([]string{ActivityGrainPests, ActivityPublicHealth})
	require.Equal(t, []string{ActivityPublicHealth, ActivityGrainPests}, allowed)
}

func TestJoinAndSplitActivities(t *testing.T) {
	stored := JoinActivities([]string{ActivityPublicHealth, ActivityGrainPests})
	require.Equal(t, "public_health_pest_control,grain_pests", stored)
	require.Equal(t, []string{ActivityPublicHealth, ActivityGrainPests}, SplitActivities(stored))
	require.Nil(t, SplitActivities(""))
}
