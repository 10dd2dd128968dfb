package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

var _ repository.EnrollmentRepository = (*Store)(nil)

type enrollmentDoc struct {
	ID         any       `bson:"_id,omitempty"`
	UserEmail  string    `bson:"userEmail"`
	CourseID   string    `bson:"courseId"`
	Price      any       `bson:"price,omitempty"`
	EnrolledAt time.Time `bson:"enrolledAt"`
}

func (d enrollmentDoc) toModel() model.Enrollment {
	e := model.Enrollment{
		ID:         idString(d.ID),
		UserEmail:  d.UserEmail,
		CourseID:   d.CourseID,
		EnrolledAt: d.EnrolledAt,
	}
	if p, ok := toFloat(d.Price); ok {
		e.Price = &p
	}
	return e
}

type enrollmentWithCourseDoc struct {
	Enrollment enrollmentDoc `bson:",inline"`
	Course     courseDoc     `bson:"course"`
}

func (s *Store) FindEnrollment(ctx context.Context, userEmail, courseID string) (*model.Enrollment, error) {
	coll, err := s.collection(ctx, enrollmentsCollection)
	if err != nil {
		return nil, err
	}

	var doc enrollmentDoc
	err = coll.FindOne(ctx, bson.M{"userEmail": userEmail, "courseId": courseID}).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("enrollment", userEmail+"/"+courseID)
		}
		return nil, fmt.Errorf("mongo: finding enrollment %s/%s: %w", userEmail, courseID, err)
	}

	e := doc.toModel()
	return &e, nil
}

func (s *Store) CreateEnrollment(ctx context.Context, e *model.Enrollment) error {
	coll, err := s.collection(ctx, enrollmentsCollection)
	if err != nil {
		return err
	}

	oid := primitive.NewObjectID()
	doc := enrollmentDoc{
		ID:         oid,
		UserEmail:  e.UserEmail,
		CourseID:   e.CourseID,
		EnrolledAt: e.EnrolledAt,
	}
	if e.Price != nil {
		doc.Price = *e.Price
	}

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("already enrolled in this course")
		}
		return fmt.Errorf("mongo: creating enrollment: %w", err)
	}

	e.ID = oid.Hex()
	return nil
}

// enrollmentsWithCoursesPipeline joins each enrollment of userEmail to its
// course. courseId is stored as a string; the course _id may be an
// ObjectID or that same string, so the lookup matches either. $unwind
// without preserveNullAndEmptyArrays drops enrollments with no course.
func enrollmentsWithCoursesPipeline(userEmail string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "userEmail", Value: userEmail}}}},
		{{Key: "$addFields", Value: bson.D{{Key: "courseObjectId", Value: bson.D{
			{Key: "$convert", Value: bson.D{
				{Key: "input", Value: "$courseId"},
				{Key: "to", Value: "objectId"},
				{Key: "onError", Value: nil},
				{Key: "onNull", Value: nil},
			}},
		}}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: coursesCollection},
			{Key: "let", Value: bson.D{
				{Key: "cid", Value: "$courseId"},
				{Key: "oid", Value: "$courseObjectId"},
			}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
					{Key: "$or", Value: bson.A{
						bson.D{{Key: "$eq", Value: bson.A{"$_id", "$$cid"}}},
						bson.D{{Key: "$eq", Value: bson.A{"$_id", "$$oid"}}},
					}},
				}}}}},
			}},
			{Key: "as", Value: "course"},
		}}},
		{{Key: "$unwind", Value: "$course"}},
		{{Key: "$sort", Value: bson.D{{Key: "enrolledAt", Value: -1}}}},
	}
}

func (s *Store) ListEnrollmentsWithCourses(ctx context.Context, userEmail string) ([]model.EnrollmentWithCourse, error) {
	coll, err := s.collection(ctx, enrollmentsCollection)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Aggregate(ctx, enrollmentsWithCoursesPipeline(userEmail))
	if err != nil {
		return nil, fmt.Errorf("mongo: joining enrollments for %s: %w", userEmail, err)
	}
	defer cursor.Close(ctx)

	var docs []enrollmentWithCourseDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding enrollments: %w", err)
	}

	out := make([]model.EnrollmentWithCourse, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.EnrollmentWithCourse{
			Enrollment: d.Enrollment.toModel(),
			Course:     d.Course.toModel(),
		})
	}
	return out, nil
}

func (s *Store) CountEnrollments(ctx context.Context) (int64, error) {
	coll, err := s.collection(ctx, enrollmentsCollection)
	if err != nil {
		return 0, err
	}
	n, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("mongo: counting enrollments: %w", err)
	}
	return n, nil
}

// sumPricePipeline groups every enrollment into one bucket. $sum skips
// missing and non-numeric price values.
var sumPricePipeline = mongo.Pipeline{
	{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: nil},
		{Key: "total", Value: bson.D{{Key: "$sum", Value: "$price"}}},
	}}},
}

func (s *Store) SumEnrollmentPrice(ctx context.Context) (float64, error) {
	coll, err := s.collection(ctx, enrollmentsCollection)
	if err != nil {
		return 0, err
	}

	cursor, err := coll.Aggregate(ctx, sumPricePipeline)
	if err != nil {
		return 0, fmt.Errorf("mongo: summing enrollment price: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total any `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("mongo: decoding price sum: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	total, _ := toFloat(rows[0].Total)
	return total, nil
}
