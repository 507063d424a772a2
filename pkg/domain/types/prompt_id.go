package types

// PromptID identifies a prompt family in the registry. All versions of the
// same instruction template share one PromptID.
type PromptID string

func (id PromptID) String() string {
	return string(id)
}

// IsEmpty checks if the PromptID is empty
func (id PromptID) IsEmpty() bool {
	return id == ""
}
