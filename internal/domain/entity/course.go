// Package entity 定义领域实体
package entity

import "time"

// 以下实体由课程管理模块维护，本服务只读

type Course struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	IsPublished bool      `json:"is_published" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Course) TableName() string {
	return "courses"
}

type Chapter struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	CourseID    string    `json:"course_id" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Content     string    `json:"content" gorm:"type:text"`
	Position    int       `json:"position" gorm:"not null"`
	IsPublished bool      `json:"is_published" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`

	Course *Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// IsAccessible 章节及其所属课程均已发布
func (c *Chapter) IsAccessible() bool {
	return c != nil && c.IsPublished && c.Course != nil && c.Course.IsPublished
}

// Question 课程题库中的题目
type Question struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	CourseID    string    `json:"course_id" gorm:"type:uuid;not null;index"`
	Question    string    `json:"question" gorm:"type:text;not null"`
	Answer      string    `json:"answer" gorm:"type:text;not null"`
	Explanation *string   `json:"explanation,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Question) TableName() string {
	return "questions"
}

type Enrollment struct {
	CourseID  string    `json:"course_id" gorm:"type:uuid;primaryKey"`
	StudentID string    `json:"student_id" gorm:"type:varchar(64);primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
