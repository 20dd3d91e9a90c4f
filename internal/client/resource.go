package client

import "context"

// State состояние асинхронного вызова
type State int

const (
	StateLoading State = iota
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Resource - результат вызова для экрана: загрузка, данные или ошибка.
// Message при ошибке совпадает с текстом исходной ошибки.
type Resource[T any] struct {
	State   State
	Data    T
	Message string
}

// Loading создает ресурс в состоянии загрузки
func Loading[T any]() Resource[T] {
	return Resource[T]{State: StateLoading}
}

// Success создает ресурс с данными
func Success[T any](data T) Resource[T] {
	return Resource[T]{State: StateSuccess, Data: data}
}

// Failure создает ресурс с ошибкой
func Failure[T any](err error) Resource[T] {
	return Resource[T]{State: StateError, Message: err.Error()}
}

// From превращает результат вызова в Success или Failure
func From[T any](data T, err error) Resource[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(data)
}

// Watch запускает fn и отдает в канал сначала Loading, затем итог.
// Канал закрывается после итогового значения.
func Watch[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Resource[T] {
	out := make(chan Resource[T], 2)
	out <- Loading[T]()

	go func() {
		defer close(out)
		data, err := fn(ctx)
		out <- From(data, err)
	}()
	return out
}
