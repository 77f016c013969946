// Package eeprom provides versioned persistent variables on top of a
// byte-addressable device.
//
// It supports:
//   - Devices: in-memory, image file, SQLite table
//   - Plain and SRAM-cached variables and arrays of fixed-size scalars
//   - A 4-byte layout version stamp at offset 0 that gates whether stored
//     values are trusted after the layout changed
//
// Every multi-byte access runs inside one platform.CriticalSection.
package eeprom
