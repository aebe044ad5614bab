package bridge

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
)

// Struct field names, shared with the JSON record file.
const (
	fieldVideosFolder   = "videosFolder"
	fieldDatabaseFolder = "databaseFolder"
	fieldType           = "type"
	fieldURL            = "url"
	fieldError          = "error"
)

var (
	errNotAString     = errors.New("field must be a string")
	errNotAStruct     = errors.New("value must be a struct or null")
	errStructRequired = errors.New("struct is required")
)

// RecordToStruct converts a record into a protobuf struct.
func RecordToStruct(record *domain.Record) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldVideosFolder:   structpb.NewStringValue(record.VideosFolder),
			fieldDatabaseFolder: structpb.NewStringValue(record.DatabaseFolder),
		},
	}
}

// RecordFromStruct converts a protobuf struct into a record. Missing fields stay empty.
func RecordFromStruct(in *structpb.Struct) (*domain.Record, error) {
	if in == nil {
		return nil, errStructRequired
	}

	videos, err := stringField(in, fieldVideosFolder)
	if err != nil {
		return nil, err
	}

	database, err := stringField(in, fieldDatabaseFolder)
	if err != nil {
		return nil, err
	}

	return &domain.Record{
		VideosFolder:   videos,
		DatabaseFolder: database,
	}, nil
}

// RecordToValue converts a record into a struct value, or null when record is nil.
func RecordToValue(record *domain.Record) *structpb.Value {
	if record == nil {
		return structpb.NewNullValue()
	}

	return structpb.NewStructValue(RecordToStruct(record))
}

// RecordFromValue is the inverse of RecordToValue.
func RecordFromValue(in *structpb.Value) (*domain.Record, error) {
	switch kind := in.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return nil, nil //nolint:nilnil // Null means nothing was saved.
	case *structpb.Value_StructValue:
		return RecordFromStruct(kind.StructValue)
	default:
		return nil, errNotAStruct
	}
}

// NotificationToStruct converts a notification into a protobuf struct.
func NotificationToStruct(n domain.Notification) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldType: structpb.NewStringValue(string(n.Type)),
	}

	if n.URL != "" {
		fields[fieldURL] = structpb.NewStringValue(n.URL)
	}

	if n.Error != "" {
		fields[fieldError] = structpb.NewStringValue(n.Error)
	}

	return &structpb.Struct{Fields: fields}
}

// NotificationFromStruct is the inverse of NotificationToStruct.
func NotificationFromStruct(in *structpb.Struct) (domain.Notification, error) {
	var (
		n   domain.Notification
		err error
	)

	if in == nil {
		return n, errStructRequired
	}

	kind, err := stringField(in, fieldType)
	if err != nil {
		return n, err
	}

	n.Type = domain.NotificationType(kind)

	if n.URL, err = stringField(in, fieldURL); err != nil {
		return n, err
	}

	if n.Error, err = stringField(in, fieldError); err != nil {
		return n, err
	}

	return n, nil
}

// stringField reads an optional string field.
func stringField(in *structpb.Struct, name string) (string, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return "", nil
	}

	switch kind := value.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", fmt.Errorf("%s: %w", name, errNotAString)
	}
}
