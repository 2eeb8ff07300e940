package weather

import "math"

// Condition is a normalized label for a WMO weather interpretation code.
type Condition string

const (
	ConditionUnknown          Condition = "unknown"
	ConditionClear            Condition = "clear"
	ConditionCloudy           Condition = "cloudy"
	ConditionFog              Condition = "fog"
	ConditionDrizzle          Condition = "drizzle"
	ConditionRain             Condition = "rain"
	ConditionFreezingRain     Condition = "freezing_rain"
	ConditionSnow             Condition = "snow"
	ConditionSnowGrains       Condition = "snow_grains"
	ConditionShowers          Condition = "showers"
	ConditionSnowShowers      Condition = "snow_showers"
	ConditionThunderstorm     Condition = "thunderstorm"
	ConditionThunderstormHail Condition = "thunderstorm_hail"
)

// ConditionFromCode maps a WMO code as used by Open-Meteo.
func ConditionFromCode(code int) Condition {
	switch code {
	case 0:
		return ConditionClear
	case 1, 2, 3:
		return ConditionCloudy
	case 45, 48:
		return ConditionFog
	case 51, 53, 55:
		return ConditionDrizzle
	case 61, 63, 65:
		return ConditionRain
	case 66, 67:
		return ConditionFreezingRain
	case 71, 73, 75:
		return ConditionSnow
	case 77:
		return ConditionSnowGrains
	case 80, 81, 82:
		return ConditionShowers
	case 85, 86:
		return ConditionSnowShowers
	case 95:
		return ConditionThunderstorm
	case 96, 99:
		return ConditionThunderstormHail
	default:
		return ConditionUnknown
	}
}

// conditionOf reads weather_code from a current block; JSON numbers decode as float64.
func conditionOf(current map[string]any) Condition {
	raw, ok := current["weather_code"]
	if !ok {
		return ConditionUnknown
	}
	code, ok := raw.(float64)
	if !ok || code != math.Trunc(code) {
		return ConditionUnknown
	}
	return ConditionFromCode(int(code))
}
