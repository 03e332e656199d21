package mirror

// ConfigurationError 表示构造 Coordinator 时的致命配置问题，不会被重试。
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func configError(field, message string) error {
	return &ConfigurationError{Field: field, Message: message}
}
