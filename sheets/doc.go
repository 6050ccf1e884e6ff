// Package sheets appends sync payloads as rows of a Google Sheets spreadsheet.
package sheets
