package ai

import (
	"fmt"
	"strings"

	"github.com/nutriscan/tracker/internal/domain/nutrition"
)

// noAllergyText is sent when the profile lists no allergies.
const noAllergyText = "none"

const recognitionPrompt = `Analyse the food in this image and estimate its nutritional values.
Use a single fixed value for every field (no ranges) and no units (no grams, kcal, etc.).
If a value cannot be determined, use 0.
Reply with JSON only, in exactly this format:
{
  "foodName": "<food name>",
  "calorie": <calories in kcal>,
  "sugar": <sugar in grams>,
  "carbohydrate": <carbohydrate in grams>,
  "fat": <fat in grams>,
  "protein": <protein in grams>
}`

const describePrompt = "What's in this picture?"

// allergyText renders the allergy list for the recommendation prompt.
func allergyText(allergies []string) string {
	clean := nutrition.Profile{Allergies: allergies}.CleanAllergies()
	if len(clean) == 0 {
		return noAllergyText
	}
	return strings.Join(clean, ", ")
}

func buildRecommendationPrompt(remaining nutrition.Macros, allergies []string) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("My food allergies: %s.\n", allergyText(allergies)))
	prompt.WriteString("Recommend exactly 3 foods that fit what is left of my daily needs:\n")
	prompt.WriteString(fmt.Sprintf("- calories: %.0f\n", remaining.Calorie))
	prompt.WriteString(fmt.Sprintf("- carbohydrate: %.1f\n", remaining.Carbohydrate))
	prompt.WriteString(fmt.Sprintf("- fat: %.1f\n", remaining.Fat))
	prompt.WriteString(fmt.Sprintf("- protein: %.1f\n", remaining.Protein))
	prompt.WriteString(fmt.Sprintf("- daily sugar limit: %.1f\n", remaining.Sugar))
	prompt.WriteString("Never suggest food containing any of my allergies.\n")
	prompt.WriteString(`Reply with JSON only, in exactly this format:
{
  "food1": {"foodName": "<food>", "information": "<why it fits>"},
  "food2": {"foodName": "<food>", "information": "<why it fits>"},
  "food3": {"foodName": "<food>", "information": "<why it fits>"}
}`)

	return prompt.String()
}
