package adapter

// TokenCounter estimates prompt size for a model.
type TokenCounter interface {
	Count(model, text string) int
}
