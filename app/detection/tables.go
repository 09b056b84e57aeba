/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package detection

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// detection files carry columns: time_index, sward_name, mac_address, type, rssi
// ward plan files carry columns: name, x, y and optionally description

// ReadDetections parses a detection table. Malformed rows are skipped with a
// debug log; partial data is an expected operating condition, not an error.
func ReadDetections(reader io.Reader) ([]Detection, error) {
	records, header, err := readTable(reader)
	if err != nil {
		return nil, err
	}

	required := []string{"time_index", "sward_name", "mac_address", "type", "rssi"}
	for _, column := range required {
		if _, ok := header[column]; !ok {
			return nil, errors.Errorf("detection table missing required column %s", column)
		}
	}

	detections := make([]Detection, 0, len(records))
	skipped := 0
	for _, record := range records {
		timeIndex, err1 := strconv.Atoi(record[header["time_index"]])
		deviceClass, err2 := strconv.Atoi(record[header["type"]])
		rssi, err3 := strconv.ParseFloat(record[header["rssi"]], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			skipped++
			continue
		}

		detections = append(detections, Detection{
			TimeIndex:   timeIndex,
			Ward:        record[header["sward_name"]],
			Identifier:  record[header["mac_address"]],
			DeviceClass: deviceClass,
			RSSI:        rssi,
		})
	}

	if skipped > 0 {
		log.WithFields(log.Fields{
			"Method":  "ReadDetections",
			"Skipped": skipped,
			"Loaded":  len(detections),
		}).Debug("Skipped malformed detection rows")
	}

	return detections, nil
}

// ReadWardPlan parses a ward coordinate table. The description column is
// optional; rows with unparseable coordinates are skipped.
func ReadWardPlan(reader io.Reader) (WardPlan, error) {
	records, header, err := readTable(reader)
	if err != nil {
		return nil, err
	}

	for _, column := range []string{"name", "x", "y"} {
		if _, ok := header[column]; !ok {
			return nil, errors.Errorf("ward plan missing required column %s", column)
		}
	}

	plan := make(WardPlan, len(records))
	skipped := 0
	for _, record := range records {
		x, err1 := strconv.ParseFloat(record[header["x"]], 64)
		y, err2 := strconv.ParseFloat(record[header["y"]], 64)
		name := record[header["name"]]
		if name == "" || err1 != nil || err2 != nil {
			skipped++
			continue
		}

		ward := Ward{Name: name, X: x, Y: y}
		if column, ok := header["description"]; ok {
			ward.Description = record[column]
		}
		plan[name] = ward
	}

	if skipped > 0 {
		log.WithFields(log.Fields{
			"Method":  "ReadWardPlan",
			"Skipped": skipped,
			"Loaded":  len(plan),
		}).Debug("Skipped malformed ward rows")
	}

	return plan, nil
}

// readTable reads all rows of a CSV stream and indexes the header columns.
func readTable(reader io.Reader) ([][]string, map[string]int, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to read csv table")
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("csv table is empty")
	}

	header := make(map[string]int, len(rows[0]))
	for index, column := range rows[0] {
		header[column] = index
	}

	// drop rows shorter than the header so column lookups stay in range
	records := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) >= len(rows[0]) {
			records = append(records, row)
		}
	}

	return records, header, nil
}
