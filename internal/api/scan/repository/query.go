package scanRepository

const (
	queryCreateScan = `
		INSERT INTO face_scans (
			id,
			user_id,
			scan_date,
			image_url,
			frame_count,
			water_retention,
			inflammation_index,
			lymph_congestion_score,
			facial_fat_layer,
			definition_score,
			potential_ceiling,
			low_spread,
			used_fallback,
			created_at
		) VALUES (
			:id,
			:user_id,
			:scan_date,
			:image_url,
			:frame_count,
			:water_retention,
			:inflammation_index,
			:lymph_congestion_score,
			:facial_fat_layer,
			:definition_score,
			:potential_ceiling,
			:low_spread,
			:used_fallback,
			:created_at
		)
	`

	queryGetScanByID = `
		SELECT
			id,
			user_id,
			scan_date,
			image_url,
			frame_count,
			water_retention,
			inflammation_index,
			lymph_congestion_score,
			facial_fat_layer,
			definition_score,
			potential_ceiling,
			low_spread,
			used_fallback,
			created_at
		FROM face_scans
		WHERE id = :id
	`

	queryGetAllScans = `
		SELECT
			id,
			user_id,
			scan_date,
			image_url,
			frame_count,
			water_retention,
			inflammation_index,
			lymph_congestion_score,
			facial_fat_layer,
			definition_score,
			potential_ceiling,
			low_spread,
			used_fallback,
			created_at
		FROM face_scans
		WHERE user_id = :user_id
		ORDER BY scan_date DESC
	`

	queryGetCurrentWeekScans = `
		SELECT
			id,
			user_id,
			scan_date,
			image_url,
			frame_count,
			water_retention,
			inflammation_index,
			lymph_congestion_score,
			facial_fat_layer,
			definition_score,
			potential_ceiling,
			low_spread,
			used_fallback,
			created_at
		FROM face_scans
		WHERE
			user_id = :user_id
			AND scan_date >= date_trunc('week', CURRENT_DATE)
			AND scan_date < date_trunc('week', CURRENT_DATE) + interval '1 week'
		ORDER BY scan_date DESC
	`

	queryGetCurrentMonthScans = `
		SELECT
			id,
			user_id,
			scan_date,
			image_url,
			frame_count,
			water_retention,
			inflammation_index,
			lymph_congestion_score,
			facial_fat_layer,
			definition_score,
			potential_ceiling,
			low_spread,
			used_fallback,
			created_at
		FROM face_scans
		WHERE
			user_id = :user_id
			AND scan_date >= date_trunc('month', CURRENT_DATE)
			AND scan_date < date_trunc('month', CURRENT_DATE) + interval '1 month'
		ORDER BY scan_date DESC
	`

	queryDeleteScan = `
		DELETE FROM face_scans
		WHERE id = :id
	`
)
