package writer

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	body, _ := io.ReadAll(data)
	args := m.Called(ctx, path, contentType, string(body))
	return args.String(0), args.Error(1)
}

type mockCourseStore struct {
	mock.Mock
}

func (m *mockCourseStore) UpsertCourse(ctx context.Context, course crawler.Course) error {
	args := m.Called(ctx, course)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	args := m.Called(ctx, topic, payload)
	return args.String(0), args.Error(1)
}
