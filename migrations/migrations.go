package migrations

import (
	"database/sql"
	"fmt"
	"time"
)

// tables are created in order; later ones reference earlier ones.
var tables = []struct {
	name  string
	query string
}{
	{"products", `
		CREATE TABLE IF NOT EXISTS products (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			seller_id BIGINT NOT NULL,
			name VARCHAR(200) NOT NULL,
			price DECIMAL(10,2) NOT NULL,
			discount_percentage DECIMAL(5,2) NOT NULL DEFAULT 0,
			stock_quantity INT UNSIGNED NOT NULL DEFAULT 0,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			INDEX idx_products_seller (seller_id, stock_quantity)
		);
	`},
	{"master_orders", `
		CREATE TABLE IF NOT EXISTS master_orders (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_number VARCHAR(20) NOT NULL,
			client_id BIGINT NOT NULL,
			total_amount DECIMAL(10,2) NOT NULL,
			payment_status VARCHAR(20) NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE KEY uq_master_orders_order_number (order_number),
			INDEX idx_master_orders_client (client_id, created_at)
		);
	`},
	{"sub_orders", `
		CREATE TABLE IF NOT EXISTS sub_orders (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			master_order_id BIGINT NULL,
			client_id BIGINT NOT NULL,
			seller_id BIGINT NOT NULL,
			order_number VARCHAR(20) NOT NULL,
			checkout_token VARCHAR(64) NOT NULL,
			status VARCHAR(20) NOT NULL,
			payment_status VARCHAR(20) NOT NULL,
			subtotal DECIMAL(10,2) NOT NULL,
			tax DECIMAL(10,2) NOT NULL DEFAULT 0,
			delivery_fee DECIMAL(10,2) NOT NULL DEFAULT 0,
			total DECIMAL(10,2) NOT NULL,
			delivery_type VARCHAR(20) NOT NULL,
			delivery_address TEXT NOT NULL,
			delivery_instructions TEXT NOT NULL,
			client_notes TEXT NOT NULL,
			payment_deadline DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			delivered_at DATETIME NULL,
			UNIQUE KEY uq_sub_orders_order_number (order_number),
			UNIQUE KEY uq_sub_orders_checkout (checkout_token, seller_id),
			INDEX idx_sub_orders_seller (seller_id, status),
			INDEX idx_sub_orders_client (client_id, created_at),
			FOREIGN KEY (master_order_id) REFERENCES master_orders(id) ON DELETE CASCADE
		);
	`},
	{"order_items", `
		CREATE TABLE IF NOT EXISTS order_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			sub_order_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			variant_id BIGINT NULL,
			quantity INT NOT NULL,
			unit_price DECIMAL(10,2) NOT NULL,
			total_price DECIMAL(10,2) NOT NULL,
			FOREIGN KEY (sub_order_id) REFERENCES sub_orders(id) ON DELETE CASCADE
		);
	`},
	{"payments", `
		CREATE TABLE IF NOT EXISTS payments (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			sub_order_id BIGINT NOT NULL,
			payment_method VARCHAR(20) NOT NULL,
			c2p_phone VARCHAR(20) NOT NULL DEFAULT '',
			c2p_reference VARCHAR(50) NOT NULL DEFAULT '',
			amount DECIMAL(10,2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			transaction_id VARCHAR(100) NOT NULL DEFAULT '',
			payment_date DATETIME NULL,
			is_successful TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			UNIQUE KEY uq_payments_sub_order (sub_order_id),
			FOREIGN KEY (sub_order_id) REFERENCES sub_orders(id) ON DELETE CASCADE
		);
	`},
	{"deliveries", `
		CREATE TABLE IF NOT EXISTS deliveries (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			sub_order_id BIGINT NOT NULL,
			delivery_type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			external_service VARCHAR(30) NULL,
			tracking_number VARCHAR(20) NOT NULL,
			estimated_delivery_time DATETIME NULL,
			delivery_person_name VARCHAR(100) NOT NULL DEFAULT '',
			delivery_person_phone VARCHAR(20) NOT NULL DEFAULT '',
			assigned_at DATETIME NULL,
			picked_up_at DATETIME NULL,
			delivered_at DATETIME NULL,
			UNIQUE KEY uq_deliveries_sub_order (sub_order_id),
			FOREIGN KEY (sub_order_id) REFERENCES sub_orders(id) ON DELETE CASCADE
		);
	`},
	{"reviews", `
		CREATE TABLE IF NOT EXISTS reviews (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			sub_order_id BIGINT NOT NULL,
			client_id BIGINT NOT NULL,
			seller_id BIGINT NOT NULL,
			rating TINYINT NOT NULL,
			comment TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE KEY uq_reviews_sub_order (sub_order_id),
			INDEX idx_reviews_seller (seller_id),
			FOREIGN KEY (sub_order_id) REFERENCES sub_orders(id) ON DELETE CASCADE
		);
	`},
	{"seller_ratings", `
		CREATE TABLE IF NOT EXISTS seller_ratings (
			seller_id BIGINT PRIMARY KEY,
			rating DECIMAL(3,2) NOT NULL DEFAULT 0,
			total_reviews INT NOT NULL DEFAULT 0
		);
	`},
}

// AutoMigrate creates every table that does not exist yet, retrying each
// statement up to retries times.
func AutoMigrate(retries int, dbs ...*sql.DB) error {
	for _, db := range dbs {
		for _, t := range tables {
			if err := exec(db, retries, t.query); err != nil {
				return fmt.Errorf("failed to migrate %s table: %w", t.name, err)
			}
		}
	}
	return nil
}

func exec(db *sql.DB, retries int, query string) error {
	_, err := db.Exec(query)
	if err != nil {
		// Retry creating the table
		for i := 0; i < retries; i++ {
			time.Sleep(1 * time.Second)
			_, err = db.Exec(query)
			if err == nil {
				break
			}
		}
	}
	return err
}
