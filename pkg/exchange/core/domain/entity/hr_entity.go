// Package entity holds the GORM models of the HR tables. They are used only to provision the
// schema (AutoMigrate); all data movement goes through untyped records and schema descriptors.
package entity

import "time"

// Department is a row of the departments table.
type Department struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Department string `gorm:"column:department;size:255;not null"`
}

// TableName specifies the table name for Department.
func (Department) TableName() string {
	return "departments"
}

// Job is a row of the jobs table.
type Job struct {
	ID  int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Job string `gorm:"column:job;size:100;not null"`
}

// TableName specifies the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// HiredEmployee is a row of the hired_employees table.
type HiredEmployee struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string    `gorm:"column:name;size:100;not null"`
	Datetime     time.Time `gorm:"column:datetime;not null"`
	DepartmentID int64     `gorm:"column:department_id;not null"`
	JobID        int64     `gorm:"column:job_id;not null"`

	Department *Department `gorm:"foreignKey:DepartmentID;references:ID"`
	Job        *Job        `gorm:"foreignKey:JobID;references:ID"`
}

// TableName specifies the table name for HiredEmployee.
func (HiredEmployee) TableName() string {
	return "hired_employees"
}

// Models returns the models in dependency order (parents first).
func Models() []interface{} {
	return []interface{}{&Department{}, &Job{}, &HiredEmployee{}}
}
