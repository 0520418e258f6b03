package domain

// Category classifies a contact and selects which templates, menu and quiz apply.
type Category string

const (
	CategoryFamily       Category = "family"
	CategoryCloseFriends Category = "closeFriends"
	CategoryColleagues   Category = "colleagues"
	CategoryStrangers    Category = "strangers"
)

// Categories lists every known category in classification priority order.
var Categories = []Category{CategoryFamily, CategoryCloseFriends, CategoryColleagues, CategoryStrangers}

func (c Category) String() string { return string(c) }

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
