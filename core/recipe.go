package core

import "fmt"

// RecipeStep is one ordered instruction of a recipe. Position is 1-based and
// must be contiguous within the parent recipe.
type RecipeStep struct {
	Position    int    `json:"position"`
	Instruction string `json:"instruction"`
	Tip         string `json:"tip,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// Recipe is the typed payload a session is started from. It replaces the
// open-ended map the services previously exchanged; every field crossing the
// boundary is validated up front.
type Recipe struct {
	Title       string       `json:"title"`
	Difficulty  string       `json:"difficulty,omitempty"`
	Ingredients []string     `json:"ingredients,omitempty"`
	Steps       []RecipeStep `json:"steps"`
}

// Validate checks the recipe for boundary violations. An empty step list is
// legal (the session then has zero total steps); a present step with no
// instruction or an out-of-sequence position is not. All violations wrap
// ErrInvalidRecipe.
func (r Recipe) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidRecipe)
	}

	for i, step := range r.Steps {
		if step.Instruction == "" {
			return fmt.Errorf("%w: step %d has no instruction", ErrInvalidRecipe, i+1)
		}
		if step.Position != i+1 {
			return fmt.Errorf("%w: step at index %d has position %d, want %d", ErrInvalidRecipe, i, step.Position, i+1)
		}
	}

	return nil
}

// TotalSteps returns the number of steps in the recipe.
func (r Recipe) TotalSteps() int { return len(r.Steps) }
