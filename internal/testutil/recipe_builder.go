package testutil

import (
	"fmt"

	"github.com/souschef-ai/souschef/core"
)

// RecipeBuilder provides a fluent helper for constructing recipes in tests.
type RecipeBuilder struct {
	title string
	steps []core.RecipeStep
}

// NewRecipeBuilder creates a builder with a default title.
func NewRecipeBuilder() *RecipeBuilder {
	return &RecipeBuilder{title: "Kimchi Stew"}
}

// Title sets the recipe title (chainable).
func (b *RecipeBuilder) Title(t string) *RecipeBuilder { b.title = t; return b }

// Step appends a step with the next position (chainable).
func (b *RecipeBuilder) Step(instruction string) *RecipeBuilder {
	b.steps = append(b.steps, core.RecipeStep{
		Position:    len(b.steps) + 1,
		Instruction: instruction,
	})
	return b
}

// StepsN appends n generated steps (chainable).
func (b *RecipeBuilder) StepsN(n int) *RecipeBuilder {
	for i := 0; i < n; i++ {
		b.Step(fmt.Sprintf("Step %d", len(b.steps)+1))
	}
	return b
}

// Build assembles the recipe.
func (b *RecipeBuilder) Build() core.Recipe {
	steps := make([]core.RecipeStep, len(b.steps))
	copy(steps, b.steps)
	return core.Recipe{Title: b.title, Steps: steps}
}
