// Package models holds the GORM rows behind the finance tables. Domain
// types carry no ORM tags; each model converts with FromDomain and ToDomain.
//
// Tables: revenues, expenses, receipt_sequences, daily_closures,
// student_fee_assignments and treasury_accounts. Unique indexes that gorm
// tags cannot express are listed in FinanceUniqueIndexes and mirror the
// versioned SQL migrations.
package models
