package recipes

// Unit is a recognized measurement code for a measured ingredient.
type Unit struct {
	Code string
	Name string
}

var units = []Unit{
	{Code: "c", Name: "cup"},
	{Code: "tbsp", Name: "tablespoon"},
	{Code: "tsp", Name: "teaspoon"},
	{Code: "oz", Name: "ounce"},
	{Code: "lb", Name: "pound"},
	{Code: "g", Name: "gram"},
	{Code: "kg", Name: "kilogram"},
	{Code: "ml", Name: "millilitre"},
	{Code: "l", Name: "litre"},
}

// Units returns the recognized unit codes in display order.
func Units() []Unit {
	out := make([]Unit, len(units))
	copy(out, units)
	return out
}

// ValidUnit reports whether code is blank or one of the recognized codes.
func ValidUnit(code string) bool {
	if code == "" {
		return true
	}
	for _, u := range units {
		if u.Code == code {
			return true
		}
	}
	return false
}
