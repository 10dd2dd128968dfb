package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

var _ repository.CourseRepository = (*Store)(nil)

// courseDoc decodes price loosely: documents written by older clients
// sometimes store it as a string.
type courseDoc struct {
	ID              any       `bson:"_id,omitempty"`
	Title           string    `bson:"title"`
	Description     string    `bson:"description"`
	Category        string    `bson:"category"`
	Price           any       `bson:"price"`
	Image           string    `bson:"image"`
	InstructorName  string    `bson:"instructorName"`
	InstructorEmail string    `bson:"instructorEmail"`
	Status          string    `bson:"status"`
	Feedback        string    `bson:"feedback"`
	TotalEnrolled   int64     `bson:"totalEnrolled"`
	CreatedAt       time.Time `bson:"createdAt"`
}

func (d courseDoc) toModel() model.Course {
	price, _ := toFloat(d.Price)
	return model.Course{
		ID:              idString(d.ID),
		Title:           d.Title,
		Description:     d.Description,
		Category:        d.Category,
		Price:           price,
		Image:           d.Image,
		InstructorName:  d.InstructorName,
		InstructorEmail: d.InstructorEmail,
		Status:          model.CourseStatus(d.Status),
		Feedback:        d.Feedback,
		TotalEnrolled:   d.TotalEnrolled,
		CreatedAt:       d.CreatedAt,
	}
}

func (s *Store) CreateCourse(ctx context.Context, course *model.Course) error {
	coll, err := s.collection(ctx, coursesCollection)
	if err != nil {
		return err
	}

	oid := primitive.NewObjectID()
	doc := courseDoc{
		ID:              oid,
		Title:           course.Title,
		Description:     course.Description,
		Category:        course.Category,
		Price:           course.Price,
		Image:           course.Image,
		InstructorName:  course.InstructorName,
		InstructorEmail: course.InstructorEmail,
		Status:          string(course.Status),
		Feedback:        course.Feedback,
		TotalEnrolled:   course.TotalEnrolled,
		CreatedAt:       course.CreatedAt,
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: creating course: %w", err)
	}

	course.ID = oid.Hex()
	return nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	coll, err := s.collection(ctx, coursesCollection)
	if err != nil {
		return nil, err
	}

	var doc courseDoc
	if err := coll.FindOne(ctx, idFilter(id)).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("course", id)
		}
		return nil, fmt.Errorf("mongo: getting course %s: %w", id, err)
	}

	c := doc.toModel()
	return &c, nil
}

func courseFilterDoc(filter model.CourseFilter) bson.M {
	q := bson.M{}
	if filter.Owner != "" {
		q["instructorEmail"] = filter.Owner
	}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	return q
}

func (s *Store) ListCourses(ctx context.Context, filter model.CourseFilter) ([]model.Course, error) {
	coll, err := s.collection(ctx, coursesCollection)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, courseFilterDoc(filter),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing courses: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []courseDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding courses: %w", err)
	}

	courses := make([]model.Course, 0, len(docs))
	for _, d := range docs {
		courses = append(courses, d.toModel())
	}
	return courses, nil
}

func (s *Store) UpdateCourse(ctx context.Context, id string, in model.CourseInput) error {
	return s.setFields(ctx, coursesCollection, "course", id, bson.M{
		"title":          in.Title,
		"description":    in.Description,
		"category":       in.Category,
		"price":          in.Price,
		"image":          in.Image,
		"instructorName": in.InstructorName,
	})
}

func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	coll, err := s.collection(ctx, coursesCollection)
	if err != nil {
		return err
	}

	res, err := coll.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return fmt.Errorf("mongo: deleting course %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("course", id)
	}
	return nil
}

func (s *Store) SetCourseStatus(ctx context.Context, id string, status model.CourseStatus, feedback string) error {
	return s.setFields(ctx, coursesCollection, "course", id, bson.M{
		"status":   string(status),
		"feedback": feedback,
	})
}

// IncrementEnrolled is a single $inc, applied atomically by the server.
func (s *Store) IncrementEnrolled(ctx context.Context, id string, delta int64) error {
	coll, err := s.collection(ctx, coursesCollection)
	if err != nil {
		return err
	}

	res, err := coll.UpdateOne(ctx, idFilter(id), bson.M{"$inc": bson.M{"totalEnrolled": delta}})
	if err != nil {
		return fmt.Errorf("mongo: incrementing course %s enrollment: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("course", id)
	}
	return nil
}

func (s *Store) CountCourses(ctx context.Context, status model.CourseStatus) (int64, error) {
	coll, err := s.collection(ctx, coursesCollection)
	if err != nil {
		return 0, err
	}

	n, err := coll.CountDocuments(ctx, courseFilterDoc(model.CourseFilter{Status: status}))
	if err != nil {
		return 0, fmt.Errorf("mongo: counting courses: %w", err)
	}
	return n, nil
}
