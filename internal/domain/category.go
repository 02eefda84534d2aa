package domain

// Category is the closed set of recognized user intents.
type Category int

const (
	CategoryRecipe Category = iota
	CategoryItemAddition
	CategoryItemInformation
	CategoryUpdateCart
	CategoryOther

	// NumCategories is the number of defined categories.
	NumCategories = int(CategoryOther) + 1
)

var categoryNames = [NumCategories]string{
	CategoryRecipe:          "Recipe type",
	CategoryItemAddition:    "Item Addition type",
	CategoryItemInformation: "Item Information type",
	CategoryUpdateCart:      "Update Cart type",
	CategoryOther:           "Others",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, NumCategories)
	for i := 0; i < NumCategories; i++ {
		out = append(out, Category(i))
	}
	return out
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < NumCategories
}

// String returns the label used in prompts and logs.
func (c Category) String() string {
	if !c.Valid() {
		return categoryNames[CategoryOther]
	}
	return categoryNames[c]
}

// ParseCategory matches s exactly against the category labels.
func ParseCategory(s string) (Category, bool) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), true
		}
	}
	return CategoryOther, false
}
