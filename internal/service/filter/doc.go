// Package filter decides whether an alarm is eligible for processing.
//
// Expressions are written in the expr language and see the alarm as the
// single variable "alarm" (see View for the available fields), for example:
//
//	alarm.severityLevel >= 6 && "Routers" in alarm.nodeCategories
package filter
