package internal

import (
	"testing"

	"github.com/lychee-technology/appforge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func todoSpecification() *appforge.Specification {
	return &appforge.Specification{
		Version: "1.0.0",
		Meta:    appforge.SpecMeta{Name: "Todo", Description: "Track tasks"},
		Entities: []appforge.Entity{{
			ID:   "task",
			Name: "Task",
			Properties: []appforge.Property{
				{Name: "title", Type: appforge.PropertyTypeString, Required: true},
				{Name: "done", Type: appforge.PropertyTypeBoolean},
			},
		}},
		Views: []appforge.View{
			{ID: "tasks", Name: "Tasks", Type: appforge.ViewTypeList, Entity: "task"},
			{ID: "new-task", Name: "New Task", Type: appforge.ViewTypeForm, Entity: "task"},
		},
		Actions: []appforge.Action{
			{ID: "add", Name: "Add task", Trigger: appforge.TriggerFormSubmit, Logic: "create a task from the form"},
		},
		Patterns: []string{"view-list", "view-form"},
	}
}

func issueCodes(issues []appforge.ValidationIssue) []string {
	codes := make([]string, 0, len(issues))
	for _, i := range issues {
		codes = append(codes, i.Code)
	}
	return codes
}

func TestValidateSpec_NilSpec(t *testing.T) {
	result := ValidateSpec(nil)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{appforge.ErrCodeNoSpec}, issueCodes(result.Errors))
	assert.Zero(t, result.Completeness)
}

func TestValidateSpec_Todo(t *testing.T) {
	result := ValidateSpec(todoSpecification())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Greater(t, result.Completeness, 0.7)
}

func TestValidateSpec_Issues(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*appforge.Specification)
		wantErrors   []string
		wantWarnings []string
	}{
		{
			name:       "missing name",
			mutate:     func(s *appforge.Specification) { s.Meta.Name = "  " },
			wantErrors: []string{appforge.ErrCodeMissingName},
		},
		{
			name:         "missing description",
			mutate:       func(s *appforge.Specification) { s.Meta.Description = "" },
			wantWarnings: []string{appforge.ErrCodeMissingDescription},
		},
		{
			name:       "no entities",
			mutate:     func(s *appforge.Specification) { s.Entities = nil; s.Views[0].Entity = ""; s.Views[1].Entity = "" },
			wantErrors: []string{appforge.ErrCodeNoEntities},
		},
		{
			name:       "no views",
			mutate:     func(s *appforge.Specification) { s.Views = nil },
			wantErrors: []string{appforge.ErrCodeNoViews},
		},
		{
			name:       "entity without properties",
			mutate:     func(s *appforge.Specification) { s.Entities[0].Properties = nil },
			wantErrors: []string{appforge.ErrCodeNoProperties},
		},
		{
			name:       "entity without name",
			mutate:     func(s *appforge.Specification) { s.Entities[0].Name = "" },
			wantErrors: []string{appforge.ErrCodeMissingEntityName},
		},
		{
			name: "duplicate entity id",
			mutate: func(s *appforge.Specification) {
				s.Entities = append(s.Entities, appforge.Entity{ID: "task", Name: "Other", Properties: []appforge.Property{{Name: "x", Type: appforge.PropertyTypeString}}})
			},
			wantErrors: []string{appforge.ErrCodeDuplicateEntityID},
		},
		{
			name: "duplicate property",
			mutate: func(s *appforge.Specification) {
				s.Entities[0].Properties = append(s.Entities[0].Properties, appforge.Property{Name: "title", Type: appforge.PropertyTypeNumber})
			},
			wantWarnings: []string{appforge.ErrCodeDuplicateProperty},
		},
		{
			name: "dangling relationship",
			mutate: func(s *appforge.Specification) {
				s.Entities[0].Relationships = []appforge.Relationship{{TargetEntity: "project", Type: appforge.RelationshipOneToMany}}
			},
			wantWarnings: []string{appforge.ErrCodeInvalidRelationship},
		},
		{
			name:         "dangling view entity",
			mutate:       func(s *appforge.Specification) { s.Views[0].Entity = "project" },
			wantWarnings: []string{appforge.ErrCodeInvalidViewEntity},
		},
		{
			name:       "view without name",
			mutate:     func(s *appforge.Specification) { s.Views[1].Name = "" },
			wantErrors: []string{appforge.ErrCodeMissingViewName},
		},
		{
			name:       "action without name",
			mutate:     func(s *appforge.Specification) { s.Actions[0].Name = "" },
			wantErrors: []string{appforge.ErrCodeMissingActionName},
		},
		{
			name:       "action without trigger",
			mutate:     func(s *appforge.Specification) { s.Actions[0].Trigger = "" },
			wantErrors: []string{appforge.ErrCodeMissingTrigger},
		},
		{
			name:         "no pattern hints",
			mutate:       func(s *appforge.Specification) { s.Patterns = nil },
			wantWarnings: []string{appforge.ErrCodeNoPatterns},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			spec := todoSpecification()
			tt.mutate(spec)

			result := ValidateSpec(spec)
			assert.ElementsMatch(t, tt.wantErrors, issueCodes(result.Errors))
			assert.ElementsMatch(t, tt.wantWarnings, issueCodes(result.Warnings))
			assert.Equal(t, len(tt.wantErrors) == 0, result.Valid)
		})
	}
}

func TestValidateSpec_WarningsNeverBlock(t *testing.T) {
	spec := todoSpecification()
	spec.Meta.Description = ""
	spec.Patterns = nil
	spec.Views[0].Entity = "ghost"

	result := ValidateSpec(spec)
	assert.True(t, result.Valid)
	assert.Len(t, result.Warnings, 3)
}

func TestValidateSpec_ErrorMessagesAreCapped(t *testing.T) {
	spec := &appforge.Specification{
		Actions: []appforge.Action{{ID: "a"}, {ID: "b"}},
	}
	result := ValidateSpec(spec)
	require.Greater(t, len(result.Errors), 3)
	assert.Len(t, result.ErrorMessages(3), 3)
	assert.Equal(t, "App name is required", result.ErrorMessages(3)[0])
	assert.Len(t, result.ErrorMessages(0), len(result.Errors))
}

func TestCalculateCompleteness_Range(t *testing.T) {
	assert.Zero(t, CalculateCompleteness(nil))
	assert.Zero(t, CalculateCompleteness(&appforge.Specification{}))

	full := todoSpecification()
	full.Patterns = []string{"a", "b", "c", "d", "e", "f", "g"}
	score := CalculateCompleteness(full)
	assert.LessOrEqual(t, score, 1.0)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestCalculateCompleteness_Monotonic(t *testing.T) {
	steps := []func(*appforge.Specification){
		func(s *appforge.Specification) { s.Meta.Name = "Todo" },
		func(s *appforge.Specification) { s.Meta.Description = "Track tasks" },
		func(s *appforge.Specification) {
			s.Entities = []appforge.Entity{{ID: "task"}}
		},
		func(s *appforge.Specification) { s.Entities[0].Name = "Task" },
		func(s *appforge.Specification) {
			s.Entities[0].Properties = []appforge.Property{{Name: "title", Type: appforge.PropertyTypeString}}
		},
		func(s *appforge.Specification) {
			s.Entities[0].Properties = append(s.Entities[0].Properties, appforge.Property{Name: "done", Type: appforge.PropertyTypeBoolean})
		},
		func(s *appforge.Specification) { s.Entities[0].Properties[0].Required = true },
		func(s *appforge.Specification) { s.Views = []appforge.View{{ID: "tasks"}} },
		func(s *appforge.Specification) { s.Views[0].Name = "Tasks" },
		func(s *appforge.Specification) { s.Views[0].Entity = "task" },
		func(s *appforge.Specification) {
			s.Actions = []appforge.Action{{ID: "add", Name: "Add", Trigger: appforge.TriggerButton}}
		},
		func(s *appforge.Specification) { s.Patterns = []string{"view-list"} },
	}

	spec := &appforge.Specification{}
	prev := CalculateCompleteness(spec)
	for i, step := range steps {
		step(spec)
		score := CalculateCompleteness(spec)
		assert.Greater(t, score, prev, "step %d did not increase completeness", i)
		prev = score
	}
}
