package weather

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConditionFromCode(t *testing.T) {
	cases := map[int]Condition{
		0:  ConditionClear,
		2:  ConditionCloudy,
		48: ConditionFog,
		53: ConditionDrizzle,
		65: ConditionRain,
		66: ConditionFreezingRain,
		73: ConditionSnow,
		77: ConditionSnowGrains,
		81: ConditionShowers,
		86: ConditionSnowShowers,
		95: ConditionThunderstorm,
		99: ConditionThunderstormHail,
		4:  ConditionUnknown,
	}
	for code, want := range cases {
		require.Equal(t, want, ConditionFromCode(code), "code %d", code)
	}
}

func TestConditionOfCurrentBlock(t *testing.T) {
	require.Equal(t, ConditionFog, conditionOf(map[string]any{"weather_code": float64(45)}))
	require.Equal(t, ConditionUnknown, conditionOf(map[string]any{"weather_code": "45"}))
	require.Equal(t, ConditionUnknown, conditionOf(map[string]any{"weather_code": 45.5}))
	require.Equal(t, ConditionUnknown, conditionOf(nil))
}

func TestPlaceValidity(t *testing.T) {
	require.True(t, ResolvedPlace{Name: "Oslo", Latitude: 59.9, Longitude: 10.7}.Valid())
	require.True(t, ResolvedPlace{Name: "Null Island", Latitude: 0, Longitude: 0}.Valid())
	require.False(t, ResolvedPlace{Name: "  ", Latitude: 1, Longitude: 1}.Valid())
}

func TestLabelSkipsEmptyParts(t *testing.T) {
	require.Equal(t, "Oslo, Norge", ResolvedPlace{Name: "Oslo", Country: "Norge"}.Label())
	require.Equal(t, "Oslo", ResolvedPlace{Name: "Oslo"}.Label())
}
