package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
	"github.com/JakeFAU/coursefinder-crawler/internal/hash/sha256"
	"github.com/JakeFAU/coursefinder-crawler/internal/publisher/memory"
	memstore "github.com/JakeFAU/coursefinder-crawler/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var writtenAt = time.Date(2016, 9, 1, 12, 0, 0, 0, time.UTC)

func course(id string) crawler.Course {
	return crawler.Course{
		ID:       id,
		Code:     crawler.CodeFromID(id),
		Name:     "Introduction to Computer Science",
		Level:    100,
		Campus:   crawler.CampusStGeorge,
		Breadths: []int{5},
	}
}

func TestEncodeFieldOrder(t *testing.T) {
	t.Parallel()

	data, err := Encode(crawler.Course{ID: "CSC148H1S20169"})
	require.NoError(t, err)
	require.Equal(t,
		`{"id":"CSC148H1S20169","code":"","name":"","description":"","division":"","department":"",`+
			`"prerequisites":"","exclusions":"","level":0,"campus":"","term":"","breadths":[],"meeting_sections":[]}`,
		string(data))
}

func TestObjectPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "A.json", ObjectPath("", "A"))
	require.Equal(t, "courses/A.json", ObjectPath("/courses/", "A"))
	require.Equal(t, "courses/2016/A.json", ObjectPath("courses/2016", "A"))
}

func TestWriteCourseFullPipeline(t *testing.T) {
	t.Parallel()

	c := course("CSC148H1S20169")
	data, err := Encode(c)
	require.NoError(t, err)
	digest, _ := sha256.New().Hash(data)

	blobs := &mockBlobStore{}
	courses := &mockCourseStore{}
	pub := &mockPublisher{}
	blobs.On("PutObject", mock.Anything, "out/CSC148H1S20169.json", "application/json", string(data)).
		Return("gs://bucket/out/CSC148H1S20169.json", nil).Once()
	courses.On("UpsertCourse", mock.Anything, c).Return(nil).Once()
	pub.On("Publish", mock.Anything, "courses", Notification{
		CourseID:  c.ID,
		BlobURI:   "gs://bucket/out/CSC148H1S20169.json",
		Hash:      digest,
		WrittenAt: writtenAt,
	}).Return("msg-1", nil).Once()

	w, err := New(Config{Prefix: "out", Topic: "courses"}, Deps{
		Blobs:     blobs,
		Courses:   courses,
		Publisher: pub,
		Hasher:    sha256.New(),
		Clock:     fixedClock{writtenAt},
	}, nil)
	require.NoError(t, err)

	uri, err := w.WriteCourse(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, "gs://bucket/out/CSC148H1S20169.json", uri)
	blobs.AssertExpectations(t)
	courses.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestWriteCourseStopsOnBlobFailure(t *testing.T) {
	t.Parallel()

	blobs := &mockBlobStore{}
	courses := &mockCourseStore{}
	blobs.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("bucket missing")).Once()

	w, err := New(Config{}, Deps{Blobs: blobs, Courses: courses, Hasher: sha256.New(), Clock: fixedClock{writtenAt}}, nil)
	require.NoError(t, err)

	_, err = w.WriteCourse(context.Background(), course("CSC148H1S20169"))
	require.ErrorContains(t, err, "bucket missing")
	courses.AssertNotCalled(t, "UpsertCourse", mock.Anything, mock.Anything)
}

func TestWriteCourseSkipsPublishWithoutTopic(t *testing.T) {
	t.Parallel()

	blobs := memstore.NewBlobStore()
	pub := memory.New()
	w, err := New(Config{}, Deps{Blobs: blobs, Publisher: pub, Hasher: sha256.New(), Clock: fixedClock{writtenAt}}, nil)
	require.NoError(t, err)

	uri, err := w.WriteCourse(context.Background(), course("MAT137Y1Y20169"))
	require.NoError(t, err)
	require.Equal(t, "memory://MAT137Y1Y20169.json", uri)
	require.Empty(t, pub.Messages())
}

func TestWriteAllContinuesPastFailures(t *testing.T) {
	t.Parallel()

	blobs := memstore.NewBlobStore()
	pub := memory.New()
	w, err := New(Config{Topic: "courses"}, Deps{Blobs: blobs, Publisher: pub, Hasher: sha256.New(), Clock: fixedClock{writtenAt}}, nil)
	require.NoError(t, err)

	written, err := w.WriteAll(context.Background(), []crawler.Course{
		course("CSC148H1S20169"),
		{},
		course("MAT137Y1Y20169"),
	})
	require.Error(t, err)
	require.Equal(t, 2, written)
	require.Equal(t, []string{"CSC148H1S20169.json", "MAT137Y1Y20169.json"}, blobs.Paths())

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	note, ok := msgs[0].Payload.(Notification)
	require.True(t, ok)
	require.Equal(t, "CSC148H1S20169", note.CourseID)
	require.Equal(t, writtenAt, note.WrittenAt)
}

func TestWriteAllHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	w, err := New(Config{}, Deps{Blobs: memstore.NewBlobStore(), Hasher: sha256.New(), Clock: fixedClock{writtenAt}}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	written, err := w.WriteAll(ctx, []crawler.Course{course("CSC148H1S20169")})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, written)
}

func TestNewRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, Deps{}, nil)
	require.Error(t, err)
	_, err = New(Config{}, Deps{Blobs: memstore.NewBlobStore()}, nil)
	require.Error(t, err)
	_, err = New(Config{}, Deps{Blobs: memstore.NewBlobStore(), Hasher: sha256.New()}, nil)
	require.Error(t, err)
}
