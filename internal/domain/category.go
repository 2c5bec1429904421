package domain

// Category is static display metadata for a category name.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// The last entry doubles as the display fallback for unknown names.
var categories = []Category{
	{ID: "1", Name: "餐饮", Icon: "🍔", Color: "bg-orange-100 text-orange-600"},
	{ID: "2", Name: "购物", Icon: "🛍️", Color: "bg-pink-100 text-pink-600"},
	{ID: "3", Name: "交通", Icon: "🚗", Color: "bg-blue-100 text-blue-600"},
	{ID: "4", Name: "娱乐", Icon: "🎮", Color: "bg-purple-100 text-purple-600"},
	{ID: "5", Name: "居住", Icon: "🏠", Color: "bg-green-100 text-green-600"},
	{ID: "6", Name: "工资", Icon: "💰", Color: "bg-emerald-100 text-emerald-600"},
	{ID: "7", Name: "其他", Icon: "✨", Color: "bg-slate-100 text-slate-600"},
}

// Categories returns a copy of the registry in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryNames returns the registry names in display order.
func CategoryNames() []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

// LookupCategory returns the registry entry for name, or the fallback entry
// when the name is not registered.
func LookupCategory(name string) Category {
	if c, ok := FindCategory(name); ok {
		return c
	}
	return categories[len(categories)-1]
}

// FindCategory returns the registry entry for name if there is one.
func FindCategory(name string) (Category, bool) {
	for _, c := range categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
