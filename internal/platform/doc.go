// Package platform holds the primitives the scheduler and the EEPROM layer
// consume from the host: a monotonic tick source and a critical section.
package platform
