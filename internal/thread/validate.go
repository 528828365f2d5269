package thread

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	titleRules = []validation.Rule{
		validation.Required.Error("must not be empty"),
	}
	commentRules = []validation.Rule{
		validation.Length(0, MaxCommentLen).Error(fmt.Sprintf("must be at most %d characters", MaxCommentLen)),
	}
	markCharRules = []validation.Rule{
		validation.Required.Error("must be 1-4 characters"),
		validation.Length(1, 4).Error("must be 1-4 characters"),
	}
	markNameRules = []validation.Rule{
		validation.Required.Error("must be 1-20 characters"),
		validation.Length(1, 20).Error("must be 1-20 characters"),
	}
)

// Validate returns the first invariant violation in t as a *ValidationError,
// or nil. Thread fields are checked before nodes; a node is checked before its
// children. Lengths count characters, not bytes.
func Validate(t *Thread) error {
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	if t.Description != nil {
		if err := ValidateDescription(*t.Description); err != nil {
			return err
		}
	}
	for i, n := range t.Children {
		if err := validateNode(n, fmt.Sprintf("childs[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node, path string) error {
	if n.rawID != nil {
		return fieldError("id", path, "must be an integer")
	}
	if n.rawParentID != nil {
		return fieldError("parentId", path, "must be null or an integer")
	}
	for i, c := range n.Comments {
		if err := validation.Validate(c, commentRules...); err != nil {
			return fieldError("comments", fmt.Sprintf("%s.comments[%d]", path, i), err.Error())
		}
	}
	for i, m := range n.VisualMarks {
		if err := validateMark(m, fmt.Sprintf("%s.visual_marks[%d]", path, i)); err != nil {
			return err
		}
	}
	for i, c := range n.Children {
		if err := validateNode(c, fmt.Sprintf("%s.childs[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTitle checks a thread title.
func ValidateTitle(title string) error {
	if err := validation.Validate(title, titleRules...); err != nil {
		return fieldError("title", "", err.Error())
	}
	return nil
}

// ValidateComment checks a node comment.
func ValidateComment(c string) error {
	if err := validation.Validate(c, commentRules...); err != nil {
		return fieldError("comments", "", err.Error())
	}
	return nil
}

// ValidateDescription checks a thread description.
func ValidateDescription(d string) error {
	if err := validation.Validate(d, commentRules...); err != nil {
		return fieldError("description", "", err.Error())
	}
	return nil
}

// ValidateMark checks a visual mark.
func ValidateMark(m VisualMark) error {
	return validateMark(m, "")
}

func validateMark(m VisualMark, path string) error {
	if err := validation.Validate(m.Char, markCharRules...); err != nil {
		return fieldError("char", path, err.Error())
	}
	if err := validation.Validate(m.Name, markNameRules...); err != nil {
		return fieldError("name", path, err.Error())
	}
	return nil
}

// ValidateCaption checks a caption typed by a user. Stored documents may hold
// empty captions; only edits are held to this rule.
func ValidateCaption(caption string) error {
	if caption == "" {
		return fieldError("caption", "", "must not be empty")
	}
	return nil
}
