package ports

type CommandValidator interface {
	Validate(raw []byte) error
}
