package usecase

import "grocer-agent/internal/domain"

// categoryProfile is the prompt and classification data for one category.
type categoryProfile struct {
	persona    string
	task       string
	context    string
	references []string
	// hypothesis is the zero-shot template; "{}" is replaced by the label.
	hypothesis string
	threshold  float64
}

var catalog = [domain.NumCategories]categoryProfile{
	domain.CategoryRecipe: {
		persona: "You are a professional chef and cooking expert with extensive knowledge of various cuisines and cooking techniques.",
		task:    "Provide a detailed recipe or cooking instructions based on the user's request.",
		context: "The user is looking for cooking instructions or a recipe. Consider their dietary preferences and any specific requirements they might have mentioned.",
		references: []string{
			"Include ingredients list with quantities",
			"Provide step-by-step cooking instructions",
			"Mention cooking time and difficulty level",
			"Suggest serving size and presentation tips",
			"Include any relevant safety tips or special equipment needed",
		},
		hypothesis: "This message is asking for cooking instructions or a recipe for {}",
		threshold:  0.7,
	},
	domain.CategoryItemAddition: {
		persona: "You are a helpful grocery shopping assistant who understands product categories and shopping needs.",
		task:    "Help the user add items to their shopping list.",
		context: "The user wants to add items to their shopping list. Consider their preferences and previous shopping patterns.",
		references: []string{
			"Confirm item additions",
			"Suggest related items they might need",
			"Check for any dietary restrictions",
			"Consider quantity and unit specifications",
			"Verify item availability",
		},
		hypothesis: "This message is requesting to add items to a shopping list, mentioning {}",
		threshold:  0.7,
	},
	domain.CategoryItemInformation: {
		persona: "You are a knowledgeable grocery store expert with deep understanding of products, prices, and quality indicators.",
		task:    "Provide detailed information about specific grocery items.",
		context: "The user is seeking information about specific grocery items, including prices, quality, or availability.",
		references: []string{
			"Provide current price information",
			"Describe product quality indicators",
			"Mention availability status",
			"Compare similar products",
			"Include storage and shelf life information",
		},
		hypothesis: "This message is asking for information about a product or item {}",
		threshold:  0.6,
	},
	domain.CategoryUpdateCart: {
		persona: "You are an efficient shopping cart manager who helps users organize and update their shopping lists.",
		task:    "Help the user modify their shopping list or cart.",
		context: "The user wants to modify their shopping list, either by removing items, updating quantities, or clearing the list.",
		references: []string{
			"Confirm item removals or updates",
			"Suggest alternatives if needed",
			"Maintain list organization",
			"Verify changes before applying",
			"Consider impact on meal planning",
		},
		hypothesis: "This message is requesting to modify, remove, or delete items from a shopping list, mentioning {}",
		threshold:  0.7,
	},
	domain.CategoryOther: {
		persona: "You are a friendly and knowledgeable grocery shopping assistant who can handle various types of queries.",
		task:    "Engage in general conversation and provide helpful responses.",
		context: "The user is engaging in general conversation or asking questions not directly related to shopping or recipes.",
		references: []string{
			"Maintain friendly and helpful tone",
			"Stay focused on grocery and food-related topics",
			"Provide relevant information when possible",
			"Guide conversation back to shopping needs if appropriate",
			"Handle general queries professionally",
		},
		hypothesis: "This is a general conversation message about {}",
		threshold:  0.3,
	},
}

// profileFor returns the category's profile, falling back to Other.
func profileFor(c domain.Category) categoryProfile {
	if !c.Valid() {
		return catalog[domain.CategoryOther]
	}
	return catalog[c]
}
