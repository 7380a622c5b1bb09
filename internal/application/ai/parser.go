package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
)

var (
	errNoJSONObject = errors.New("model reply contains no JSON object")
	errEmptyReply   = errors.New("model returned an empty reply")

	validate     = validator.New()
	leadingFloat = regexp.MustCompile(`^([-+]?\d+(?:[.,]\d+)?)([eE][-+]?\d+)?`)
)

// flexNumber accepts a JSON number, a numeric string or anything else,
// which decodes to 0. Models routinely quote numbers or add units.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}
	*f = flexNumber(parseLooseNumber(raw))
	return nil
}

// parseLooseNumber reads the leading number of s. Anything unparsable,
// NaN or infinite becomes 0.
func parseLooseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return finite(v)
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
		return finite(v)
	}
	m := leadingFloat.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	mantissa, exponent := m[1], m[2]
	// "1,200" groups thousands, "12,5" is a decimal comma.
	if i := strings.IndexByte(mantissa, ','); i >= 0 {
		if len(mantissa)-i-1 == 3 {
			mantissa = mantissa[:i] + mantissa[i+1:]
		} else {
			mantissa = mantissa[:i] + "." + mantissa[i+1:]
		}
	}
	v, err = strconv.ParseFloat(mantissa+exponent, 64)
	if err != nil {
		return 0
	}
	return finite(v)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// extractJSONObject strips code fences and surrounding prose and returns
// the text between the first '{' and the last '}'.
func extractJSONObject(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", errNoJSONObject
	}
	return s[start : end+1], nil
}

type recognitionReply struct {
	FoodName     string     `json:"foodName"`
	Calorie      flexNumber `json:"calorie"`
	Sugar        flexNumber `json:"sugar"`
	Carbohydrate flexNumber `json:"carbohydrate"`
	Fat          flexNumber `json:"fat"`
	Protein      flexNumber `json:"protein"`
}

type recognizedFood struct {
	FoodName     string  `validate:"required,max=200"`
	Calorie      float64 `validate:"gte=0"`
	Sugar        float64 `validate:"gte=0"`
	Carbohydrate float64 `validate:"gte=0"`
	Fat          float64 `validate:"gte=0"`
	Protein      float64 `validate:"gte=0"`
}

// parseRecognition turns a vision model reply into a RecognizedFood.
func parseRecognition(reply string) (nutrition.RecognizedFood, error) {
	obj, err := extractJSONObject(reply)
	if err != nil {
		return nutrition.RecognizedFood{}, err
	}

	var r recognitionReply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nutrition.RecognizedFood{}, fmt.Errorf("malformed recognition JSON: %w", err)
	}

	food := recognizedFood{
		FoodName:     strings.TrimSpace(r.FoodName),
		Calorie:      float64(r.Calorie),
		Sugar:        float64(r.Sugar),
		Carbohydrate: float64(r.Carbohydrate),
		Fat:          float64(r.Fat),
		Protein:      float64(r.Protein),
	}
	if err := validate.Struct(food); err != nil {
		return nutrition.RecognizedFood{}, fmt.Errorf("recognition reply failed validation: %w", err)
	}

	return nutrition.RecognizedFood{
		FoodName: food.FoodName,
		Macros: nutrition.Macros{
			Calorie:      food.Calorie,
			Carbohydrate: food.Carbohydrate,
			Sugar:        food.Sugar,
			Fat:          food.Fat,
			Protein:      food.Protein,
		},
	}, nil
}

type suggestionReply struct {
	FoodName    string `json:"foodName" validate:"required"`
	Information string `json:"information"`
}

type recommendationReply struct {
	Food1 *suggestionReply `json:"food1" validate:"required"`
	Food2 *suggestionReply `json:"food2" validate:"required"`
	Food3 *suggestionReply `json:"food3" validate:"required"`
}

// parseRecommendation turns a text model reply into exactly three suggestions.
func parseRecommendation(reply string) (nutrition.Recommendation, error) {
	obj, err := extractJSONObject(reply)
	if err != nil {
		return nutrition.Recommendation{}, err
	}

	var r recommendationReply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nutrition.Recommendation{}, fmt.Errorf("malformed recommendation JSON: %w", err)
	}
	for _, s := range []*suggestionReply{r.Food1, r.Food2, r.Food3} {
		if s != nil {
			s.FoodName = strings.TrimSpace(s.FoodName)
			s.Information = strings.TrimSpace(s.Information)
		}
	}
	if err := validate.Struct(r); err != nil {
		return nutrition.Recommendation{}, fmt.Errorf("recommendation reply failed validation: %w", err)
	}

	conv := func(s *suggestionReply) nutrition.FoodSuggestion {
		return nutrition.FoodSuggestion{FoodName: s.FoodName, Information: s.Information}
	}
	return nutrition.Recommendation{
		Food1: conv(r.Food1),
		Food2: conv(r.Food2),
		Food3: conv(r.Food3),
	}, nil
}
